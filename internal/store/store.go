// Package store defines the persistence interfaces the turn pipeline
// depends on (§2 component B): SpeciesStore, EnvironmentStore and
// HistoryStore. Concrete implementations live in store/postgres (species,
// environment) and store/history (turn logs / lineage events, split across
// Postgres for the relational shape and Mongo for document-shaped report
// payloads per the dependency-wiring table).
package store

import (
	"context"

	"chronofauna/internal/simtypes"
)

// SpeciesStore is the persistent set-of-records for Species, with bulk
// upsert and transactional write scopes (§5 "Shared resources").
type SpeciesStore interface {
	ListAlive(ctx context.Context) ([]*simtypes.Species, error)
	Get(ctx context.Context, lineageCode string) (*simtypes.Species, error)
	BulkUpsert(ctx context.Context, species []*simtypes.Species) error
	NextID(ctx context.Context) (int64, error)
}

// EnvironmentStore owns MapTile and HabitatRecord persistence.
type EnvironmentStore interface {
	ListTiles(ctx context.Context) ([]simtypes.MapTile, error)
	LatestHabitats(ctx context.Context, turn int64) ([]simtypes.HabitatRecord, error)
	WriteHabitatsBulk(ctx context.Context, records []simtypes.HabitatRecord) error
	GetMapState(ctx context.Context) (simtypes.MapState, error)
	SetMapState(ctx context.Context, state simtypes.MapState) error
	PruneHabitatsOlderThan(ctx context.Context, turn int64) error
}

// HistoryStore is the append-only turn-report / lineage-event log.
type HistoryStore interface {
	AppendTurnReport(ctx context.Context, report simtypes.TurnReport) error
	ListTurnReports(ctx context.Context, limit int) ([]simtypes.TurnReport, error)
	AppendLineageEvent(ctx context.Context, lineageCode, eventType string, payload any) error
}

// GenusStore persists the `genera` table (§6): the gene-library discovery
// audit log and pairwise genetic-distance record shared by a genus's
// member species.
type GenusStore interface {
	Get(ctx context.Context, code string) (*simtypes.Genus, error)
	Upsert(ctx context.Context, genus *simtypes.Genus) error
	ListAll(ctx context.Context) ([]*simtypes.Genus, error)
}
