package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "WVAULT"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "WVAULT_APP_ENV"
	EnvPort     = "WVAULT_APP_PORT"
	EnvDBDSN    = "WVAULT_DB_DSN"
	EnvDBHost   = "WVAULT_DB_HOST"
	EnvDBUser   = "WVAULT_DB_USER"
	EnvDBName   = "WVAULT_DB_NAME"
	EnvRedisURL = "WVAULT_REDIS_URL"

	EnvJWTSecret  = "WVAULT_JWT_SECRET"
	EnvJWTIssuer  = "WVAULT_JWT_ISSUER"
	EnvJWTExpMins = "WVAULT_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "WVAULT_GCP_PROJECT_ID"
	EnvGCSBucket         = "WVAULT_GCS_BUCKET_NAME"
	EnvGCSDownloadExpiry = "WVAULT_GCS_DOWNLOAD_URL_EXPIRY"

	EnvAnthropicAPIKey = "WVAULT_ANTHROPIC_API_KEY"
	EnvAnthropicModel  = "WVAULT_ANTHROPIC_MODEL"

	EnvMaxUploadMB       = "WVAULT_MAX_UPLOAD_MB"
	EnvExtractionTimeout = "WVAULT_EXTRACTION_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
