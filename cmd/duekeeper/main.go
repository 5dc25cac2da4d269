package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	"github.com/smallbiznis/duekeeper/internal/lock"
	"github.com/smallbiznis/duekeeper/internal/migration"
	"github.com/smallbiznis/duekeeper/internal/observability"
	"github.com/smallbiznis/duekeeper/internal/ratelimit"
	"github.com/smallbiznis/duekeeper/internal/scheduler"
	"github.com/smallbiznis/duekeeper/internal/seed"
	"github.com/smallbiznis/duekeeper/internal/server"
	"github.com/smallbiznis/duekeeper/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		ratelimit.Module,
		migration.Module,
		seed.Module,

		// Collections engine and API surface
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
