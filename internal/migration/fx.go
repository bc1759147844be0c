package migration

import (
	"github.com/mentorly/sessionmeter/internal/config"
	conversationdomain "github.com/mentorly/sessionmeter/internal/conversation/domain"
	subscriptiondomain "github.com/mentorly/sessionmeter/internal/subscription/domain"
	usagedomain "github.com/mentorly/sessionmeter/internal/usage/domain"
	webhookdomain "github.com/mentorly/sessionmeter/internal/webhook/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// SQL migrations target postgres; sqlite deployments (dev, CI)
		// rely on AutoMigrate instead.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&conversationdomain.Conversation{},
				&usagedomain.LedgerEntry{},
				&usagedomain.ConversationUsageDetail{},
				&subscriptiondomain.Subscription{},
				&webhookdomain.WebhookEvent{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
