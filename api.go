package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof" // register handlers
	"regexp"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zephyrtronium/roarbot/audit"
	"github.com/zephyrtronium/roarbot/bot"
)

// api is the HTTP API for inspecting a running bot.
type api struct {
	bot *bot.Bot
	// audit is the audit log. May be nil.
	audit *audit.Log
}

// routes creates the API's handler.
func (a *api) routes(metrics []prometheus.Collector) *http.ServeMux {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/gogc:percent|/gc/gomemlimit:bytes|/gc/heap/allocs:bytes|/gc/heap/goal:bytes|/memory/classes/total:bytes|/sched/gomaxprocs:threads|/sched/goroutines:goroutines|/sched/latencies:seconds)$`),
			},
		),
	))
	reg.MustRegister(metrics...)
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /api/commands", a.apiCommands)
	mux.HandleFunc("GET /api/audit", a.apiAudit)
	mux.HandleFunc("GET /api/audit/{command}", a.apiAuditCount)
	return mux
}

// serve serves the API until ctx is canceled.
func (a *api) serve(ctx context.Context, listen string, metrics []prometheus.Collector) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     a.routes(metrics),
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

func jsonwrite(ctx context.Context, log *slog.Logger, w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

type apiCommand struct {
	Name        string `json:"name"`
	Signature   string `json:"signature,omitzero"`
	Description string `json:"description,omitzero"`
	Category    string `json:"category"`
	Admin       bool   `json:"admin"`
}

func (a *api) apiCommands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "commands"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	cmds := a.bot.Commands()
	u := struct {
		Data   []apiCommand `json:"data"`
		Status int          `json:"status"`
	}{
		Data:   make([]apiCommand, len(cmds)),
		Status: http.StatusOK,
	}
	for i, c := range cmds {
		u.Data[i] = apiCommand{
			Name:        c.Name,
			Signature:   c.Pattern.Signature(),
			Description: c.Description,
			Category:    c.Category,
			Admin:       c.Admin,
		}
	}
	jsonwrite(ctx, log, w, &u)
}

type apiEntry struct {
	Time    string `json:"time"`
	Trace   string `json:"trace"`
	Command string `json:"command"`
	Author  string `json:"author"`
	Chat    string `json:"chat"`
	Post    string `json:"post"`
	Outcome string `json:"outcome"`
}

func (a *api) apiAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "audit"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	if a.audit == nil {
		log.WarnContext(ctx, "no audit log")
		jsonerror(w, http.StatusNotFound, "audit log not configured")
		return
	}
	n := 64
	if s := r.FormValue("n"); s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n <= 0 {
			log.WarnContext(ctx, "bad request", slog.String("n", s), slog.Any("err", err))
			jsonerror(w, http.StatusBadRequest, "invalid page size")
			return
		}
	}
	l, err := a.audit.Recent(ctx, n)
	if err != nil {
		log.ErrorContext(ctx, "couldn't get audit entries", slog.Any("err", err))
		jsonerror(w, http.StatusInternalServerError, err.Error())
		return
	}
	u := struct {
		Data   []apiEntry `json:"data"`
		Status int        `json:"status"`
	}{
		Data:   make([]apiEntry, len(l)),
		Status: http.StatusOK,
	}
	for i, e := range l {
		u.Data[i] = apiEntry{
			Time:    e.Time.UTC().Format(time.RFC3339),
			Trace:   e.Trace,
			Command: e.Command,
			Author:  e.Author,
			Chat:    e.Chat,
			Post:    e.Post,
			Outcome: e.Outcome,
		}
	}
	jsonwrite(ctx, log, w, &u)
}

type apiCount struct {
	Command string `json:"command"`
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// apiAuditCount reports how many invocations of a command had an outcome.
// The outcome defaults to ok.
func (a *api) apiAuditCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "audit-count"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	if a.audit == nil {
		log.WarnContext(ctx, "no audit log")
		jsonerror(w, http.StatusNotFound, "audit log not configured")
		return
	}
	c := apiCount{Command: r.PathValue("command"), Outcome: r.FormValue("outcome")}
	if c.Outcome == "" {
		c.Outcome = "ok"
	}
	n, err := a.audit.Count(ctx, c.Command, c.Outcome)
	if err != nil {
		log.ErrorContext(ctx, "couldn't count audit entries", slog.Any("err", err))
		jsonerror(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.Count = n
	u := struct {
		Data   apiCount `json:"data"`
		Status int      `json:"status"`
	}{
		Data:   c,
		Status: http.StatusOK,
	}
	jsonwrite(ctx, log, w, &u)
}
