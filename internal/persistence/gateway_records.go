package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	uclhttp "github.com/nucleus/provision-core/internal/connector/http"
	"github.com/nucleus/provision-core/internal/identity"
)

// GatewayRecords saves records through a PostgREST-style gateway. Rows are
// upserted on local_id so a retried save never creates a second row.
type GatewayRecords struct {
	client     *uclhttp.Client
	pathPrefix string
	logger     *slog.Logger
}

// NewGatewayRecords wraps client. pathPrefix is prepended to collection
// paths ("/rest/v1" for hosted platforms, empty for a bare gateway).
func NewGatewayRecords(client *uclhttp.Client, pathPrefix string, logger *slog.Logger) *GatewayRecords {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayRecords{client: client, pathPrefix: pathPrefix, logger: logger}
}

// Save implements identity.RecordSaver.
func (g *GatewayRecords) Save(ctx context.Context, collection string, records []*identity.Record) ([]identity.Acknowledgement, error) {
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if r.LocalID == uuid.Nil {
			return nil, fmt.Errorf("record without local id in %s", collection)
		}
		row := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			row[k] = v
		}
		row["local_id"] = r.LocalID.String()
		delete(row, "id")
		rows = append(rows, row)
	}

	resp, err := g.client.Post(ctx, g.pathPrefix+"/"+collection,
		url.Values{"on_conflict": {"local_id"}},
		map[string]string{"Prefer": "resolution=merge-duplicates,return=representation"},
		rows)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", collection, err)
	}

	var returned []map[string]any
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&returned); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", collection, err)
	}

	acks := make([]identity.Acknowledgement, 0, len(returned))
	for _, row := range returned {
		localID, err := uuid.Parse(fmt.Sprint(row["local_id"]))
		if err != nil {
			continue
		}
		id, ok := row["id"]
		if !ok || id == nil {
			continue
		}
		acks = append(acks, identity.Acknowledgement{LocalID: localID, RemoteID: fmt.Sprint(id)})
	}
	g.logger.Debug("records saved", "collection", collection, "sent", len(rows), "acknowledged", len(acks))
	return acks, nil
}

var _ identity.RecordSaver = (*GatewayRecords)(nil)
