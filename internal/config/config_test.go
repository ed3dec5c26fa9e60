package config_test

import (
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tenring/quiver/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.StorePath, convey.ShouldEqual, "quiver.db")
			convey.So(cfg.FlushQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.FlushWorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.MaxRankingLimit, convey.ShouldEqual, 100)
			convey.So(cfg.MastersWindowDays, convey.ShouldEqual, 90)
			convey.So(cfg.TypeMultipliers["competition"], convey.ShouldEqual, 1.5)
			convey.So(cfg.TypeMultipliers["club"], convey.ShouldEqual, 1.2)
			convey.So(cfg.TypeMultipliers["personal"], convey.ShouldEqual, 1.0)
			convey.So(cfg.DefaultMultiplier, convey.ShouldEqual, 1.0)
		})
	})
}
