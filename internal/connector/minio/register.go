package minio

import "github.com/nucleus/provision-core/internal/endpoint"

func init() {
	endpoint.Register(TemplateID, func(params map[string]any) (endpoint.Endpoint, error) {
		return New(params)
	})
}
