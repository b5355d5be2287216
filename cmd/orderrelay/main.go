package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderrelay/internal/clock"
	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/smallbiznis/orderrelay/internal/observability"
	"github.com/smallbiznis/orderrelay/internal/providers/whatsapp"
	"github.com/smallbiznis/orderrelay/internal/ratelimit"
	"github.com/smallbiznis/orderrelay/internal/server"
	"github.com/smallbiznis/orderrelay/internal/webhook"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		ratelimit.Module,
		server.Module,

		// Functional Domains
		whatsapp.Module,
		webhook.Module,
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
