package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/clock"
	"github.com/mentorly/sessionmeter/internal/config"
	"github.com/mentorly/sessionmeter/internal/migration"
	"github.com/mentorly/sessionmeter/internal/observability"
	"github.com/mentorly/sessionmeter/internal/server"
	"github.com/mentorly/sessionmeter/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
