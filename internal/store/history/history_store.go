// Package history implements HistoryStore: turn_logs and lineage_events
// (§6 persistence schema). Grounded on the teacher's eventstore package's
// append-only event envelope, split across two backends per the
// dependency-wiring table: Postgres holds the relational lineage_events
// table (its shape — id, lineage_code, event_type, payload, created_at —
// maps directly onto eventstore.Event), Mongo holds the document-shaped
// turn_logs collection since a TurnReport's nested stage/species-snapshot
// payload is naturally document-shaped rather than relational.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"chronofauna/internal/simtypes"
)

// Store implements store.HistoryStore.
type Store struct {
	pg    *pgxpool.Pool
	turns *mongo.Collection
}

func NewStore(pg *pgxpool.Pool, turnLogs *mongo.Collection) *Store {
	return &Store{pg: pg, turns: turnLogs}
}

func (s *Store) AppendTurnReport(ctx context.Context, report simtypes.TurnReport) error {
	doc := bson.M{
		"turn_index":             report.TurnIndex,
		"stages":                 report.Stages,
		"extinct_species":        report.ExtinctSpecies,
		"new_species":            report.NewSpecies,
		"activated_traits":       report.ActivatedTraits,
		"total_population":       report.TotalPopulation,
		"duration_ms":            report.DurationMS,
		"warnings":               report.Warnings,
		"species_snapshots":      report.SpeciesSnapshots,
		"pressures_summary":      report.PressuresSummary,
		"branching_events":       report.BranchingEvents,
		"reemergence_events":     report.ReemergenceEvents,
		"major_events":           report.MajorEvents,
		"map_changes":            report.MapChanges,
		"migration_events":       report.MigrationEvents,
		"sea_level":              report.SeaLevel,
		"global_avg_temperature": report.GlobalAvgTemperature,
		"tectonic_stage":         report.TectonicStage,
		"recorded_at":            time.Now().UTC(),
	}
	if _, err := s.turns.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("history: append turn report: %w", err)
	}
	return nil
}

func (s *Store) ListTurnReports(ctx context.Context, limit int) ([]simtypes.TurnReport, error) {
	opts := mongoFindOptionsDescByTurn(limit)
	cur, err := s.turns.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("history: list turn reports: %w", err)
	}
	defer cur.Close(ctx)

	var out []simtypes.TurnReport
	for cur.Next(ctx) {
		var doc struct {
			TurnIndex        int64                             `bson:"turn_index"`
			Stages           []simtypes.StageReport            `bson:"stages"`
			ExtinctSpecies   []string                          `bson:"extinct_species"`
			NewSpecies       []string                          `bson:"new_species"`
			ActivatedTraits  map[string][]string               `bson:"activated_traits"`
			TotalPopulation  int64                             `bson:"total_population"`
			DurationMS       int64                             `bson:"duration_ms"`
			Warnings         []string                          `bson:"warnings"`
			SpeciesSnapshots []simtypes.SpeciesSnapshot         `bson:"species_snapshots"`
			PressuresSummary string                             `bson:"pressures_summary"`
			BranchingEvents  []simtypes.BranchingEventSummary   `bson:"branching_events"`
			ReemergenceEvents []simtypes.ReemergenceEvent       `bson:"reemergence_events"`
			MajorEvents      []string                          `bson:"major_events"`
			MapChanges       []string                          `bson:"map_changes"`
			MigrationEvents  []simtypes.MigrationEvent          `bson:"migration_events"`
			SeaLevel         float64                            `bson:"sea_level"`
			GlobalAvgTemperature float64                        `bson:"global_avg_temperature"`
			TectonicStage    string                             `bson:"tectonic_stage"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("history: decode turn report: %w", err)
		}
		out = append(out, simtypes.TurnReport{
			TurnIndex: doc.TurnIndex, Stages: doc.Stages, ExtinctSpecies: doc.ExtinctSpecies,
			NewSpecies: doc.NewSpecies, ActivatedTraits: doc.ActivatedTraits,
			TotalPopulation: doc.TotalPopulation, DurationMS: doc.DurationMS, Warnings: doc.Warnings,
			SpeciesSnapshots: doc.SpeciesSnapshots, PressuresSummary: doc.PressuresSummary,
			BranchingEvents: doc.BranchingEvents, ReemergenceEvents: doc.ReemergenceEvents,
			MajorEvents: doc.MajorEvents, MapChanges: doc.MapChanges, MigrationEvents: doc.MigrationEvents,
			SeaLevel: doc.SeaLevel, GlobalAvgTemperature: doc.GlobalAvgTemperature, TectonicStage: doc.TectonicStage,
		})
	}
	return out, cur.Err()
}

func (s *Store) AppendLineageEvent(ctx context.Context, lineageCode, eventType string, payload any) error {
	encoded, err := bson.MarshalExtJSON(payload, false, false)
	if err != nil {
		return fmt.Errorf("history: encode lineage event payload: %w", err)
	}
	_, err = s.pg.Exec(ctx, `
		INSERT INTO lineage_events (lineage_code, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)`, lineageCode, eventType, encoded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("history: append lineage event: %w", err)
	}
	return nil
}

// Truncate empties turn_logs and lineage_events, for the
// catastrophic-recovery path of §7 (POST /admin/drop-database).
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.turns.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("history: truncate turn_logs: %w", err)
	}
	if _, err := s.pg.Exec(ctx, `TRUNCATE TABLE lineage_events`); err != nil {
		return fmt.Errorf("history: truncate lineage_events: %w", err)
	}
	return nil
}
