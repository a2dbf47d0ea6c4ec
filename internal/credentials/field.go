package credentials

import (
	"strings"

	"github.com/nucleus/provision-core/internal/endpoint"
)

var optionalFields = map[string]bool{
	"gatewayPort": true,
	"schema":      true,
	"region":      true,
	"serviceKey":  true,
}

// ValidateField validates one configuration field of the given backend kind.
// driver selects the naming rules of the relational-direct kind ("mysql" or
// "postgres"; empty means postgres). The gateway kind always uses PostgreSQL
// rules.
func ValidateField(kind endpoint.Kind, driver, field, value string) Result {
	value = strings.TrimSpace(value)
	if value == "" && optionalFields[field] {
		return valid("Optional field left empty")
	}

	switch field {
	case "host", "hostname":
		return ValidateHostname(value)
	case "port", "gatewayPort":
		return ValidatePort(value)
	case "password":
		return ValidatePassword(value)
	case "url", "platformUrl":
		return ValidateURL(value)
	case "endpointUrl", "endpoint":
		if strings.Contains(value, "://") {
			return ValidateURL(value)
		}
		return ValidateHostname(value)
	}

	switch kind {
	case endpoint.KindObjectStore:
		switch field {
		case "accessKey", "accessKeyId":
			return ValidateAccessKey(value)
		case "secretKey", "secretAccessKey":
			return ValidateSecretKey(value)
		case "bucket":
			return ValidateBucketName(value)
		}
	case endpoint.KindHostedPlatform:
		switch field {
		case "anonKey", "serviceKey", "apiKey":
			return ValidateAPIKey(value)
		}
	case endpoint.KindRelationalGateway, endpoint.KindRelationalDirect:
		if kind == endpoint.KindRelationalGateway || !strings.EqualFold(driver, "mysql") {
			driver = "postgres"
		} else {
			driver = "mysql"
		}
		switch field {
		case "database", "dbname", "schema":
			return ValidateDatabaseName(driver, value)
		case "username", "user":
			return ValidateUsername(driver, value)
		}
	}

	if value == "" {
		return invalid("Field is required")
	}
	return valid("OK")
}
