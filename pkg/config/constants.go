// Package config provides configuration loading and constants for the gateway.
package config

import "time"

// Connection establishment bounds.
const (
	DefaultLoginTimeout   = 15 * time.Second
	DefaultNetworkTimeout = 15 * time.Second
)

// QueryPreviewLength bounds how much statement text reaches the logs.
const QueryPreviewLength = 200

// Session parameter defaults.
const (
	DefaultTimezone = "UTC"
)

// Tool exposed to the invocation transport.
const (
	ToolExecuteQuery            = "execute_query"
	ToolExecuteQueryDescription = "Execute a SQL query on Snowflake"
	ToolQueryArgument           = "query"
	ToolQueryArgumentDesc       = "SQL query to execute"
)

// ServerName identifies the gateway to transports.
const ServerName = "snowflake-server"

// Transport and HTTP server defaults.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	DefaultHTTPAddr        = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultStatementTTL is how long completed statements stay queryable.
const DefaultStatementTTL = time.Hour

// Driver selects the backend dialect.
type Driver string

// Supported drivers.
const (
	DriverSnowflake Driver = "snowflake"
	DriverDuckDB    Driver = "duckdb"
	DriverPostgres  Driver = "postgres"
)

// Environment variable names.
const (
	EnvUser      = "SNOWFLAKE_USER"
	EnvPassword  = "SNOWFLAKE_PASSWORD"
	EnvAccount   = "SNOWFLAKE_ACCOUNT"
	EnvDatabase  = "SNOWFLAKE_DATABASE"
	EnvSchema    = "SNOWFLAKE_SCHEMA"
	EnvWarehouse = "SNOWFLAKE_WAREHOUSE"
	EnvRole      = "SNOWFLAKE_ROLE"

	EnvHost     = "SNOWFLAKE_HOST"
	EnvPort     = "SNOWFLAKE_PORT"
	EnvProtocol = "SNOWFLAKE_PROTOCOL"

	EnvDriver         = "GATEWAY_DRIVER"
	EnvDuckDBPath     = "GATEWAY_DUCKDB_PATH"
	EnvLoginTimeout   = "GATEWAY_LOGIN_TIMEOUT"
	EnvNetworkTimeout = "GATEWAY_NETWORK_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
)

// RequiredKeys lists the environment variables that must be present and
// non-empty, in reporting order.
var RequiredKeys = []string{
	EnvUser,
	EnvPassword,
	EnvAccount,
	EnvDatabase,
	EnvSchema,
	EnvWarehouse,
	EnvRole,
}
