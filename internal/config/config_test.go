package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/clash/internal/config"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Tenant, convey.ShouldEqual, "default")
			convey.So(cfg.MaxRangeDays, convey.ShouldEqual, 366)
			convey.So(cfg.ConfigUpdateAttempts, convey.ShouldEqual, 5)
			convey.So(cfg.ScoreConcurrency, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.PerformerWindowMode, convey.ShouldEqual, "sliding")
			convey.So(cfg.DefaultRules.Rule(), convey.ShouldResemble, rules.Defaults())
			convey.So(cfg.DefaultWeights.Weights(), convey.ShouldResemble, weights.Defaults())
			convey.So(cfg.Location(), convey.ShouldEqual, time.UTC)
			convey.So(cfg.RatingsTimeout(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty db path", func(c *config.Config) { c.DBPath = " " }},
			{"zero range cap", func(c *config.Config) { c.MaxRangeDays = 0 }},
			{"zero update attempts", func(c *config.Config) { c.ConfigUpdateAttempts = 0 }},
			{"zero score concurrency", func(c *config.Config) { c.ScoreConcurrency = 0 }},
			{"unknown window mode", func(c *config.Config) { c.PerformerWindowMode = "tumbling" }},
			{"negative index threshold", func(c *config.Config) { c.IndexThreshold = -1 }},
			{"unknown timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"radius above threshold", func(c *config.Config) { c.DefaultRules.ColocationRadiusMiles = 500 }},
			{"weights off 100", func(c *config.Config) { c.DefaultWeights.Readiness = 16 }},
			{"bad cron", func(c *config.Config) { c.Catalog.RefreshCron = "sometimes" }},
			{"zero horizon", func(c *config.Config) { c.Catalog.HorizonDays = 0 }},
			{"source without url", func(c *config.Config) { c.Catalog.Sources = []config.Source{{ID: "a"}} }},
			{"duplicate source", func(c *config.Config) {
				c.Catalog.Sources = []config.Source{{ID: "a", URL: "http://x"}, {ID: "a", URL: "http://y"}}
			}},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it is rejected as invalid", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When the refresh schedule is empty", func() {
			cfg := config.New()
			cfg.Catalog.RefreshCron = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
