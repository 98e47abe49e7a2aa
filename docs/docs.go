// Package docs 注册 Swagger 文档（swag init 生成，勿手工修改接口描述以外的内容）
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/reader/info": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询模块信息",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/connector.ModuleInfo"}}, "504": {"description": "模块无应答"}}}
        },
        "/api/v1/reader/power": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询发射功率",
                "responses": {"200": {"description": "value 单位 0.01dBm"}}},
            "put": {"security": [{"ApiKeyAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["读写器"], "summary": "设置发射功率",
                "parameters": [{"description": "dbm 或 value 二选一", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.PowerRequest"}}],
                "responses": {"200": {"description": "模块实际生效的功率"}}}
        },
        "/api/v1/reader/channel": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询工作信道",
                "responses": {"200": {"description": "OK"}}},
            "put": {"security": [{"ApiKeyAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["读写器"], "summary": "设置工作信道",
                "parameters": [{"description": "信道索引", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.ChannelRequest"}}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/reader/region": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询工作地区",
                "responses": {"200": {"description": "OK"}}},
            "put": {"security": [{"ApiKeyAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["读写器"], "summary": "设置工作地区",
                "parameters": [{"description": "地区名称或代码", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.RegionRequest"}}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/reader/frequency": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询工作频率",
                "description": "按地区与信道换算中心频率（MHz）", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/reader/inventory": {
            "post": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "单次盘点",
                "description": "执行一次单次轮询并返回读到的标签（不去重）",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/inventory.Result"}}}}
        },
        "/api/v1/reader/stream": {
            "post": {"security": [{"ApiKeyAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["读写器"], "summary": "开始连续盘点",
                "description": "标签经 /ws/tags 与已配置的下游推送",
                "parameters": [{"description": "轮询次数，缺省使用配置值", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/api.StreamRequest"}}],
                "responses": {"202": {"description": "Accepted"}, "409": {"description": "已在盘点"}}},
            "delete": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "停止连续盘点",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/inventory.Status"}}, "409": {"description": "未在盘点"}}}
        },
        "/api/v1/reader/status": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询盘点状态",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/inventory.Status"}}}}
        },
        "/api/v1/reader/observations": {
            "get": {"security": [{"ApiKeyAuth": []}], "produces": ["application/json"], "tags": ["读写器"], "summary": "查询历史标签",
                "parameters": [
                    {"type": "string", "description": "EPC（大写十六进制）", "name": "epc", "in": "query"},
                    {"type": "string", "description": "会话ID", "name": "session", "in": "query"},
                    {"type": "string", "description": "起始时间 RFC3339", "name": "since", "in": "query"},
                    {"type": "integer", "description": "条数(默认100,最大1000)", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "503": {"description": "未启用数据库"}}}
        },
        "/ws/tags": {
            "get": {"security": [{"ApiKeyAuth": []}], "tags": ["读写器"], "summary": "标签实时推送",
                "description": "WebSocket，每条消息为一批标签读取事件（JSON 数组）", "responses": {"101": {"description": "Switching Protocols"}, "503": {"description": "连接数已满"}}}
        },
        "/health": {
            "get": {"produces": ["application/json"], "tags": ["健康检查"], "summary": "聚合健康状态",
                "responses": {"200": {"description": "OK"}, "503": {"description": "不健康"}}}
        }
    },
    "definitions": {
        "api.PowerRequest": {"type": "object", "properties": {"dbm": {"type": "number"}, "value": {"type": "integer"}}},
        "api.ChannelRequest": {"type": "object", "required": ["index"], "properties": {"index": {"type": "integer"}}},
        "api.RegionRequest": {"type": "object", "required": ["region"], "properties": {"region": {"type": "string"}}},
        "api.StreamRequest": {"type": "object", "properties": {"count": {"type": "integer"}}},
        "connector.ModuleInfo": {"type": "object", "properties": {
            "hardware": {"type": "string"}, "software": {"type": "string"}, "manufacturer": {"type": "string"}, "region": {"type": "integer"}}},
        "inventory.Observation": {"type": "object", "properties": {
            "id": {"type": "string"}, "sessionId": {"type": "string"}, "readerId": {"type": "string"}, "epc": {"type": "string"},
            "rssi": {"type": "integer"}, "pc": {"type": "integer"}, "seenAt": {"type": "string"}}},
        "inventory.Result": {"type": "object", "properties": {
            "sessionId": {"type": "string"}, "observations": {"type": "array", "items": {"$ref": "#/definitions/inventory.Observation"}}}},
        "inventory.Status": {"type": "object", "properties": {
            "readerId": {"type": "string"}, "state": {"type": "string"}, "streaming": {"type": "boolean"}, "sessionId": {"type": "string"},
            "startedAt": {"type": "string"}, "tagsSeen": {"type": "integer"}, "lastError": {"type": "string"}}}
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "R200 RFID Gateway API",
	Description:      "UHF RFID reader control and tag inventory.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
