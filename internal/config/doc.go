// Package config 负责加载 PumpMCP 的启动配置：可选的 YAML/JSON 配置文件、
// 工作目录下的 .env 文件以及环境变量覆盖，最后统一填充默认值并校验。
package config
