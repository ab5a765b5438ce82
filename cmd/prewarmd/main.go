package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"prewarmd/internal/cache"
	"prewarmd/internal/config"
	"prewarmd/internal/manager"
	"prewarmd/internal/services/alert"
	"prewarmd/internal/services/pprof"
	"prewarmd/internal/tools"
	"prewarmd/internal/warmer"
	logx "prewarmd/pkg/logx"
)

func main() {
	var cfgPath, logLevel string
	flag.StringVar(&cfgPath, "config", "", "path to config file (json or yaml)")
	flag.StringVar(&logLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// One early load for the daemon block (logging, cache, alerting). The
	// manager keeps its own loader for the source list.
	boot := config.NewLoader(cfgPath, logx.Nop())
	if _, err := boot.Load(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	dcfg := boot.Daemon()

	lcfg := logx.Config{
		Level:   dcfg.Logging.Level,
		Console: dcfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: dcfg.Logging.File.Enabled,
			Path:    dcfg.Logging.File.Path,
		},
	}
	if logLevel != "" {
		lcfg.Level = logLevel
	}
	logSvc, log := logx.New(lcfg)
	defer logSvc.Close()

	store, err := cache.Open(cache.Config{Driver: dcfg.Cache.Driver, Path: dcfg.Cache.Path}, log)
	if err != nil {
		log.Error("cache store open failed", logx.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	alertSvc, err := alert.New(alert.Config{
		Enabled:             dcfg.Alert.Enabled,
		Token:               dcfg.Alert.Token,
		ChatID:              dcfg.Alert.ChatID,
		ConsecutiveFailures: dcfg.Alert.ConsecutiveFailures,
		RatePerMin:          dcfg.Alert.RatePerMin,
	}, log)
	if err != nil {
		log.Error("alerting unavailable, continuing without it", logx.Err(err))
	}
	if alertSvc != nil {
		alertSvc.Start(ctx)
		defer alertSvc.Stop()
	}

	pp := pprof.New(pprof.Config{Enabled: dcfg.Pprof.Enabled, Addr: dcfg.Pprof.Addr}, log)
	pp.Start()

	opts := []manager.Option{
		manager.WithRegistry(tools.Builtin(store, log)),
	}
	if r := dcfg.Warmer.RatePerSec; r > 0 {
		opts = append(opts, manager.WithWarmerOptions(warmer.WithRateLimit(r, dcfg.Warmer.Burst)))
	}
	if alertSvc != nil {
		opts = append(opts, manager.WithResultObserver(alertSvc.Observe))
	}
	mgr := manager.New(cfgPath, log, opts...)
	mgr.Start()

	// Once shutdown begins, watcher callbacks must not restart the manager.
	var (
		ctrlMu   sync.Mutex
		stopping bool
	)

	// Watch the resolved file so edits take effect without a restart. A
	// daemon started against an empty default config has nothing to watch.
	if file := boot.ResolvedPath(); file != "" {
		w := config.NewWatcher(file, log, func() {
			ctrlMu.Lock()
			defer ctrlMu.Unlock()
			if stopping {
				return
			}
			if mgr.GetStatus().Running {
				mgr.ReloadConfig()
			} else {
				mgr.Start()
			}
		})
		go func() {
			if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Error("config watcher stopped", logx.Err(err))
			}
		}()
	}

	if _, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", logx.Err(err))
	}
	log.Info("prewarmd started", logx.String("config", boot.ResolvedPath()))

	<-ctx.Done()
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)

	ctrlMu.Lock()
	stopping = true
	ctrlMu.Unlock()
	mgr.Stop()
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	pp.Stop(shCtx)
	log.Info("prewarmd stopped")
}
