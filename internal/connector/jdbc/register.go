package jdbc

import "github.com/nucleus/provision-core/internal/endpoint"

func init() {
	endpoint.Register("jdbc."+DriverPostgres, func(params map[string]any) (endpoint.Endpoint, error) {
		return NewBase(DriverPostgres, params)
	})
	endpoint.Register("jdbc."+DriverMySQL, func(params map[string]any) (endpoint.Endpoint, error) {
		return NewBase(DriverMySQL, params)
	})
}
