// Package docs 注册 gpu-detect 的 Swagger 文档
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/AnalyseDeCircuit/gpu-detect"
        },
        "license": {
            "name": "CC BY-NC 4.0",
            "url": "https://creativecommons.org/licenses/by-nc/4.0/"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/report": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "枚举显卡并返回报告。默认返回纯文本，Accept 为 application/json 或 application/cbor 时返回带统计的信封",
                "produces": ["text/plain", "application/json", "application/cbor"],
                "tags": ["Report"],
                "summary": "显卡报告",
                "parameters": [
                    {"type": "integer", "description": "缓冲区大小 (字节, 2..1048576)", "name": "capacity", "in": "query"},
                    {"type": "boolean", "description": "在 JSON/CBOR 信封中附带主机信息", "name": "host", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ReportResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/backends": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Report"],
                "summary": "枚举后端",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/types.BackendInfo"}}}
                }
            }
        },
        "/api/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Monitoring"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/api/token": {
            "post": {
                "description": "校验 API Key 并签发 JWT，同时写入 HttpOnly Cookie",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "获取令牌",
                "parameters": [
                    {"description": "API Key", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TokenResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/token/revoke": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "吊销令牌",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "types.BackendInfo": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "available": {"type": "boolean"},
                "description": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "version": {"type": "string"},
                "ws_clients": {"type": "integer"}
            }
        },
        "types.HostInfo": {
            "type": "object",
            "properties": {
                "hostname": {"type": "string"},
                "kernel_arch": {"type": "string"},
                "kernel_version": {"type": "string"},
                "os": {"type": "string"},
                "platform": {"type": "string"},
                "platform_version": {"type": "string"},
                "uptime": {"type": "integer"},
                "virtualization": {"type": "string"}
            }
        },
        "types.ReportResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "capacity": {"type": "integer"},
                "dedicated": {"type": "integer"},
                "dropped": {"type": "integer"},
                "duration_ms": {"type": "number"},
                "fatal_stage": {"type": "string"},
                "generated_at": {"type": "string"},
                "host": {"$ref": "#/definitions/types.HostInfo"},
                "integrated": {"type": "integer"},
                "request_id": {"type": "string"},
                "text": {"type": "string"},
                "truncated": {"type": "boolean"},
                "warnings": {"type": "integer"}
            }
        },
        "types.TokenRequest": {
            "type": "object",
            "properties": {
                "api_key": {"type": "string"}
            }
        },
        "types.TokenResponse": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "token": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT令牌 (格式: \"Bearer {token}\")",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "CookieAuth": {
            "description": "JWT令牌 (HttpOnly Cookie)",
            "type": "apiKey",
            "name": "auth_token",
            "in": "cookie"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:38080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "gpu-detect API",
	Description:      "显卡枚举与分类报告服务，提供纯文本报告、JSON/CBOR 信封、WebSocket 推送与 Prometheus 指标",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
