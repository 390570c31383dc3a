package nvml

// Stage is reported when NVML cannot be initialised.
const Stage = "NVML initialisation"
