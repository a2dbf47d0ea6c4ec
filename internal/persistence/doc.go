// Package persistence stores records and image blobs on the active backend.
//
//	GatewayRecords - upserts through the relational gateway's REST surface
//	LocalRecords   - offline store in a local SQLite file
//	Images         - image blobs in the object store
package persistence
