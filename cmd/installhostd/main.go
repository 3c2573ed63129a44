// Command installhostd is a reference host process for the install protocol
// core: it wires the engine to concrete signer/store/transport/validator
// collaborators and exposes install over a WebSocket, for manual and
// integration exercise of the core packages. The propose flow and app
// registry that would normally hand it params/preChannel are out of scope
// (spec §1) — this binary accepts them directly over the wire, which a real
// deployment would replace with its own client API in front of the same
// orchestrator.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chanlattice/installproto/hostkit/cfg"
	"github.com/chanlattice/installproto/hostkit/logging"
	hostmetrics "github.com/chanlattice/installproto/hostkit/metrics"
	"github.com/chanlattice/installproto/hostkit/signer"
	"github.com/chanlattice/installproto/hostkit/store"
	"github.com/chanlattice/installproto/hostkit/transport"
	"github.com/chanlattice/installproto/hostkit/validate"
	"github.com/chanlattice/installproto/orchestrator"
	"github.com/chanlattice/installproto/statechannel"
	"github.com/chanlattice/installproto/wire"
)

// installRequest is the payload carried in an Envelope's Params field (for a
// responder dispatch) or posted directly to /install (to initiate). It
// exists only because this reference binary has no app registry or propose
// flow of its own to source InstallParams/preChannel from.
//
// preChannel's free balance is carried as a concrete FreeBalanceState rather
// than decoded straight into statechannel.Channel: AppInstance.LatestState is
// an AppState interface, and encoding/json cannot decode JSON into an
// interface field without a concrete type to target. A real host wires the
// channel from its own store instead of off the wire, so this DTO exists
// only to keep this manual-test binary's /install and inbound-envelope paths
// functional.
type installRequest struct {
	Params        statechannel.InstallParams `json:"params"`
	PreChannel    statechannel.Channel       `json:"preChannel"`
	FreeBalanceFB statechannel.FreeBalanceState `json:"preChannelFreeBalance"`
}

func (r installRequest) channel() statechannel.Channel {
	ch := r.PreChannel
	ch.FreeBalance.LatestState = r.FreeBalanceFB
	return ch
}

func main() {
	log := logging.New("installhostd")

	config, err := cfg.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	sig, err := signer.NewFromHex(config.PrivateKeyHex)
	if err != nil {
		log.Error("init signer", "error", err)
		os.Exit(1)
	}
	log.Info("signer initialized", "address", sig.Address().Hex())

	db, err := store.Connect(config.DB.DSN())
	if err != nil {
		log.Error("connect store", "error", err)
		os.Exit(1)
	}
	st := store.New(db)

	mx := hostmetrics.New()
	val := validate.New(nil) // no app registry wired; every app definition is accepted

	hub := transport.NewHub()
	msn := transport.New(hub)

	orch := orchestrator.New(sig, val, msn, st, config.ChainID, log)

	hub.OnMessage = func(from string, env wire.Envelope) {
		if env.Protocol != wire.ProtocolInstall || env.Seq != 1 {
			return
		}
		var req installRequest
		if err := json.Unmarshal(env.Params, &req); err != nil {
			log.Error("decode install envelope", "from", from, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mx.RunsStarted.Inc()
		if err := orch.Dispatch(ctx, env, req.Params, req.channel()); err != nil {
			log.Error("install dispatch failed", "processId", env.ProcessID, "error", err)
			mx.RunsFailed.WithLabelValues("dispatch").Inc()
			return
		}
		mx.RunsSucceeded.Inc()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		identifier := r.URL.Query().Get("identifier")
		if identifier == "" {
			http.Error(w, "missing identifier query param", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		hub.Register(identifier, conn)
	})

	mux.HandleFunc("/install", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req installRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		processID := uuid.NewString()
		mx.RunsStarted.Inc()
		if err := orch.Initiate(r.Context(), processID, req.Params, req.channel()); err != nil {
			log.Error("install initiate failed", "processId", processID, "error", err)
			mx.RunsFailed.WithLabelValues("initiate").Inc()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		mx.RunsSucceeded.Inc()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"processId": processID})
	})

	server := &http.Server{Addr: config.ListenAddr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":9090", Handler: metricsMux}

	go func() {
		log.Info("rpc server listening", "addr", config.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("rpc server failure", "error", err)
		}
	}()

	go func() {
		log.Info("metrics server listening", "addr", ":9090")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failure", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown rpc server", "error", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Error("shutdown metrics server", "error", err)
	}
	log.Info("shutdown complete")
}
