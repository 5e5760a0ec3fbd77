// Package main provides a CLI tool for seeding numbering rules and legacy counters.
// Usage: seed [path/to/seed.json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"docnum/internal/config"
	appctx "docnum/internal/core/context"
	"docnum/internal/core/tx"
	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/http/v1/dto"
	"docnum/internal/infrastructure/storage/postgres"
	"docnum/internal/infrastructure/storage/postgres/numbering_repo"
	"docnum/pkg/logger"
)

const defaultSeedFile = "seeds/numbering.json"

type seedFile struct {
	Rules     []dto.CreateRuleRequest `json:"rules"`
	Sequences []sequenceSeed          `json:"sequences"`
}

// sequenceSeed continues a legacy counter: the next number issued is Value+1.
type sequenceSeed struct {
	RuleName       string `json:"ruleName"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	DepartmentCode string `json:"departmentCode"`
	Value          int64  `json:"value"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Process:     "seed",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	path := defaultSeedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	seed, err := readSeed(path)
	if err != nil {
		log.Fatalw("failed to read seed file", "path", path, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "seed"})
	ctx = logger.WithLogger(ctx, log)

	if cfg.StorageDriver != config.DriverPostgres {
		log.Fatalw("seeding requires the postgres driver", "driver", cfg.StorageDriver)
	}

	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)
	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}

	store := numbering_repo.NewRuleStore(txm, audit, numbering_repo.Config{
		DocumentsTable:       cfg.Numbering.DocumentsTable,
		DocumentNumberColumn: cfg.Numbering.DocumentNumberColumn,
	})
	svc := numbering.NewService(numbering.ServiceConfig{Store: store})

	if err := seedAll(ctx, txm, svc, seed, log); err != nil {
		log.Fatalw("seeding failed, nothing was written", "error", err)
	}

	log.Infow("seeding completed successfully",
		"rules", len(seed.Rules),
		"sequences", len(seed.Sequences),
	)
}

// seedAll applies the whole file in one transaction; store calls join it through ctx.
func seedAll(ctx context.Context, txm tx.Manager, svc *numbering.Service, seed *seedFile, log *logger.Logger) error {
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ruleIDs, err := seedRules(ctx, svc, seed.Rules, log)
		if err != nil {
			return err
		}
		return seedSequences(ctx, svc, seed.Sequences, ruleIDs, log)
	})
}

func readSeed(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &seed, nil
}

// seedRules creates missing rules and returns the id of every seeded rule by name.
// Rules are immutable, so an existing rule with the same name is left untouched.
func seedRules(ctx context.Context, svc *numbering.Service, rules []dto.CreateRuleRequest, log *logger.Logger) (map[string]int64, error) {
	ids := make(map[string]int64, len(rules))

	for _, r := range rules {
		existing, err := svc.SearchRules(ctx, numbering.RuleFilter{Name: r.RuleName, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("look up rule %q: %w", r.RuleName, err)
		}
		if len(existing.Items) > 0 {
			ids[r.RuleName] = existing.Items[0].ID
			log.Infow("rule already exists", "rule_name", r.RuleName, "rule_id", existing.Items[0].ID)
			continue
		}

		rule, err := svc.CreateRule(ctx, r.ToDomain())
		if err != nil {
			return nil, fmt.Errorf("create rule %q: %w", r.RuleName, err)
		}
		ids[r.RuleName] = rule.ID
	}

	return ids, nil
}

func seedSequences(ctx context.Context, svc *numbering.Service, seqs []sequenceSeed, ruleIDs map[string]int64, log *logger.Logger) error {
	for _, s := range seqs {
		ruleID, ok := ruleIDs[s.RuleName]
		if !ok {
			return fmt.Errorf("sequence refers to unknown rule %q", s.RuleName)
		}

		scope := numbering.SequenceScope{
			RuleID:         ruleID,
			Year:           s.Year,
			Month:          s.Month,
			DepartmentCode: s.DepartmentCode,
		}

		err := svc.AdvanceSequence(ctx, scope, s.Value)
		switch {
		case err == nil:
		case errors.Is(err, numbering.ErrSequenceRewind):
			log.Warnw("counter already past seed value, skipped",
				"rule_name", s.RuleName,
				"scope", scope,
				"value", s.Value,
			)
		default:
			return fmt.Errorf("advance %q %04d-%02d: %w", s.RuleName, s.Year, s.Month, err)
		}
	}
	return nil
}
