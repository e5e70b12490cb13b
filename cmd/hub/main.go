// Command hub is the print fleet hub process entrypoint: it loads
// configuration, opens the persistent store, resolves hub identity,
// wires the fleet manager to the cloud tunnel through the coordination
// interfaces, and runs the scheduler loop until the process is signaled
// to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/printfarm/hub/internal/cloudtunnel"
	"github.com/printfarm/hub/internal/config"
	"github.com/printfarm/hub/internal/coordination"
	"github.com/printfarm/hub/internal/fleet"
	"github.com/printfarm/hub/internal/identity"
	"github.com/printfarm/hub/internal/metrics"
	"github.com/printfarm/hub/internal/provisioning"
	"github.com/printfarm/hub/internal/scheduler"
	"github.com/printfarm/hub/internal/store"
)

func main() {
	log := newLogger("bootstrap")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load error")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	if dump, err := yaml.Marshal(cfg); err == nil {
		log.WithField("config", string(dump)).Debug("loaded configuration")
	}

	st, err := store.Open(cfg.StorePath, config.StoreOpenRetries, config.StoreRetryDelay)
	if err != nil {
		log.WithError(err).Fatal("store open error")
	}
	defer st.Close()

	hubConfigNS := st.Namespace("hub_config")
	hubID, _ := hubConfigNS.GetString("hub_id", "")
	if hubID == "" || cfg.HubIDOverride != "" {
		hubID, err = identity.Resolve(cfg.HubIDOverride)
		if err != nil {
			log.WithError(err).Fatal("identity resolve error")
		}
		if err := hubConfigNS.PutString("hub_id", hubID); err != nil {
			log.WithError(err).Warn("identity persist error")
		}
	}
	log.WithField("hub_id", hubID).Info("resolved hub identity")

	metrics.Init()

	fleetMgr := fleet.New(st, cfg.SlotCapacity, newLogger("fleet"))
	if err := fleetMgr.LoadAll(); err != nil {
		log.WithError(err).Fatal("fleet load error")
	}

	tunnelNS := st.Namespace("tunnel")
	tenantID, _ := tunnelNS.GetString("tenant_id", cfg.TenantID)
	claimToken, _ := tunnelNS.GetString("claim_token", cfg.ClaimToken)
	cloudURL, _ := tunnelNS.GetString("cloud_url", cfg.DefaultCloudURL)
	if cloudURL == "" {
		cloudURL = cfg.DefaultCloudURL
	}

	gpio := coordination.NewPinSink()

	tunnel, err := cloudtunnel.New(cloudtunnel.Identity{
		HubID:           hubID,
		MACAddress:      identity.MACFromHubID(hubID),
		FirmwareVersion: cfg.FirmwareVersion,
		HardwareVersion: cfg.HardwareVersion,
		TenantID:        tenantID,
		ClaimToken:      claimToken,
	}, cloudURL, tunnelNS, fleetMgr, gpio, newLogger("tunnel"))
	if err != nil {
		log.WithError(err).Fatal("cloud tunnel construction error")
	}
	tunnel.Start()

	provisionSvc := provisioning.New(st, fleetMgr, tunnel, newLogger("provisioning"))
	_ = provisionSvc // exercised by whatever local transport decodes provisioning frames

	loop := scheduler.New(tunnel, fleetMgr, config.SchedulerTick, newLogger("scheduler"))
	stop := make(chan struct{})
	go loop.Run(stop)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: loggingMiddleware(mux, newLogger("http"))}

	go func() {
		log.WithField("addr", cfg.MetricsAddr).Info("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func newLogger(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

func loggingMiddleware(next http.Handler, log *logrus.Entry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   resp.status,
			"duration": time.Since(start),
		}).Info("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
