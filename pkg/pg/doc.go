// Package pg connects to PostgreSQL through a pgx pool and applies goose
// migrations embedded in the binary.
//
//	pool, err := pg.Connect(ctx, cfg)
//	err = pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log)
//
// IsDuplicateKeyError and ConstraintName let repositories translate unique
// violations into domain errors.
package pg
