// Package mongo connects to MongoDB with the v2 driver. The history store
// can read match history and campaign progress from it instead of Postgres.
package mongo
