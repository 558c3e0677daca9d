package main

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/unrolled/render"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/kward/boardshelf"
	"github.com/kward/boardshelf/server/docs"
	"github.com/kward/boardshelf/store"
)

var (
	// Renderer is a renderer for all occasions. These are our preferred default options.
	// See:
	//  - https://github.com/unrolled/render/blob/v1/README.md
	//  - https://godoc.org/gopkg.in/unrolled/render.v1
	Renderer = render.New(render.Options{
		Charset:                   "UTF-8",
		Directory:                 "views",
		DisableHTTPErrorRendering: false,
		Extensions:                []string{".tmpl", ".html"},
		IndentJSON:                false,
		IndentXML:                 true,
		Layout:                    "layout",
		RequirePartials:           true,
		Funcs:                     []template.FuncMap{},
	})

	log       = boardshelf.NewLogger()
	ugcPolicy = bluemonday.StrictPolicy()
)

// apiServer holds the wired dependencies the handlers need.
type apiServer struct {
	engine *boardshelf.Engine
	syncs  *syncManager
}

// @title Boardshelf API
// @version 1.0
// @description A BoardGameGeek collection sync and browsing API
// @contact.name API Support
// @contact.url http://github.com/kward/boardshelf
// @license.name MIT
// @license.url https://github.com/kward/boardshelf/blob/main/LICENSE
// @host localhost:8080
// @BasePath /

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Panicw("could not load config", zap.Error(err))
		return
	}

	log.Infow("Starting up", "host", fmt.Sprintf("http://localhost:%s", cfg.Port))
	isDev := cfg.Env != "production"

	st, err := store.Open(cfg.DatabaseURL, log.Desugar())
	if err != nil {
		log.Panicw("could not open store", zap.Error(err))
		return
	}

	client := boardshelf.NewClient()
	if cfg.BGGBaseURL != "" {
		client.BaseURL = cfg.BGGBaseURL
	}

	engine := &boardshelf.Engine{Client: client, Store: st}
	api := &apiServer{
		engine: engine,
		syncs:  newSyncManager(engine),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	r.Use(cors.New(cors.Options{
		AllowCredentials:   true,
		OptionsPassthrough: true,
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:     []string{"Link"},
		MaxAge:             300, // Maximum value not ignored by any of major browsers
	}).Handler)

	r.NotFound(notFoundHandler)

	// Stuff that does not ssl redirect
	r.Group(func(r chi.Router) {
		r.Use(secure.New(secure.Options{
			BrowserXssFilter:   true,
			ContentTypeNosniff: true,
			FrameDeny:          true,
			HostsProxyHeaders:  []string{"X-Forwarded-Host"},
			IsDevelopment:      isDev,
			SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		}).Handler)

		r.Get("/healthz", healthCheckHandler)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Everything that does SSL only
	r.Group(func(r chi.Router) {
		r.Use(secure.New(secure.Options{
			BrowserXssFilter:     true,
			ContentTypeNosniff:   true,
			FrameDeny:            true,
			HostsProxyHeaders:    []string{"X-Forwarded-Host"},
			IsDevelopment:        isDev,
			SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
			SSLRedirect:          !isDev,
			STSIncludeSubdomains: true,
			STSPreload:           true,
			STSSeconds:           315360000,
		}).Handler)

		r.Get("/", rootHandler)
		r.Get("/swagger/doc.json", swaggerJSONHandler)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))

		r.Post("/user/{username}/sync", api.startSyncHandler)
		r.Get("/sync/{id}", api.syncStatusHandler)
		r.Get("/user/{username}", api.userHandler)
		r.Get("/user/{username}/games", api.collectionHandler)
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	log.Fatal(server.ListenAndServe())
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start))
	})
}

// @Summary Get API information
// @Description Returns basic API information and available endpoints
// @Tags info
// @Produce html
// @Success 200 {string} string "HTML page with API information"
// @Router / [get]
func rootHandler(w http.ResponseWriter, r *http.Request) {
	// Use embedded swagger.json data from docs package
	spec, err := docs.GetSwaggerSpec()
	if err != nil {
		log.Errorw("failed to parse swagger.json", zap.Error(err))
		// Fallback to static content
		writeStaticHomePage(w)
		return
	}

	// Generate HTML with endpoint information
	html := `
<html>
  <head>
    <title>Boardshelf API</title>
    <style>
      body { font-family: Arial, sans-serif; max-width: 800px; margin: 40px auto; padding: 20px; }
      h1 { color: #333; }
      .endpoint { margin: 20px 0; padding: 15px; border-left: 4px solid #007acc; background: #f8f9fa; }
      .method { font-weight: bold; color: #007acc; text-transform: uppercase; }
      .path { font-family: monospace; color: #333; margin: 5px 0; }
      .description { color: #666; margin: 5px 0; }
      .tag { background: #e1ecf4; color: #39739d; padding: 2px 6px; border-radius: 3px; font-size: 0.8em; margin-right: 5px; }
      a { color: #007acc; text-decoration: none; }
      a:hover { text-decoration: underline; }
    </style>
  </head>
  <body>
    <h1>Boardshelf API</h1>
    <p>A BoardGameGeek collection sync and browsing API.</p>
    <p><a href="/swagger/">📚 View Swagger Documentation</a></p>

    <h2>Available Endpoints</h2>`

	for path, methods := range spec.Paths {
		for method, info := range methods {
			html += fmt.Sprintf(`
    <div class="endpoint">
      <div class="method">%s</div>
      <div class="path">%s</div>
      <div class="description">%s</div>
      <div>`, method, path, info.Description)

			for _, tag := range info.Tags {
				html += fmt.Sprintf(`<span class="tag">%s</span>`, tag)
			}

			html += `</div>
    </div>`
		}
	}

	html += `
  </body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		log.Errorw("failed to write response", zap.Error(err))
	}
}

func writeStaticHomePage(w http.ResponseWriter) {
	html := `
<html>
  <head>
    <title>Boardshelf API</title>
    <style>
      body { font-family: Arial, sans-serif; max-width: 800px; margin: 40px auto; padding: 20px; }
    </style>
  </head>
  <body>
    <h1>Boardshelf API</h1>
    <p>A BoardGameGeek collection sync and browsing API.</p>
    <p><a href="/swagger/">📚 View Swagger Documentation</a></p>
    <ul>
      <li>POST /user/{username}/sync - Start a collection sync</li>
      <li>GET /sync/{id} - Get sync job status</li>
      <li>GET /user/{username} - Check whether a user is linked</li>
      <li>GET /user/{username}/games - List a user's collection</li>
      <li>GET /healthz - Health check</li>
    </ul>
  </body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		log.Errorw("failed to write response", zap.Error(err))
	}
}

// @Summary Start a collection sync
// @Description Starts an asynchronous sync of the username's owned collection from BGG
// @Tags sync
// @Produce json
// @Param username path string true "BGG username"
// @Success 202 {object} syncJob
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /user/{username}/sync [post]
func (a *apiServer) startSyncHandler(w http.ResponseWriter, r *http.Request) {
	username := sanitizedUsername(r)
	if username == "" {
		if err := Renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "empty username"}); err != nil {
			log.Errorw("failed to render response", zap.Error(err))
		}
		return
	}

	job := a.syncs.Start(username)
	if err := Renderer.JSON(w, http.StatusAccepted, job); err != nil {
		log.Errorw("failed to render response", zap.Error(err))
	}
}

// @Summary Get sync job status
// @Description Returns the state of a previously started sync job
// @Tags sync
// @Produce json
// @Param id path string true "Sync job id"
// @Success 200 {object} syncJob
// @Failure 404 {object} map[string]string
// @Router /sync/{id} [get]
func (a *apiServer) syncStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := ugcPolicy.Sanitize(chi.URLParamFromCtx(r.Context(), "id"))

	job, ok := a.syncs.Get(id)
	if !ok {
		if err := Renderer.JSON(w, http.StatusNotFound, map[string]string{"error": "no such sync job"}); err != nil {
			log.Errorw("failed to render response", zap.Error(err))
		}
		return
	}

	if err := Renderer.JSON(w, http.StatusOK, job); err != nil {
		log.Errorw("failed to render response", zap.Error(err))
	}
}

// @Summary Check whether a user is linked
// @Description Reports whether the username has been synced before
// @Tags user
// @Produce json
// @Param username path string true "BGG username"
// @Success 200 {object} map[string]bool
// @Failure 500 {object} map[string]string
// @Router /user/{username} [get]
func (a *apiServer) userHandler(w http.ResponseWriter, r *http.Request) {
	username := sanitizedUsername(r)

	exists, err := a.engine.UserExists(r.Context(), username)
	if err != nil {
		log.Errorw("could not check user", "username", username, zap.Error(err))
		if err := Renderer.JSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()}); err != nil {
			log.Errorw("failed to render response", zap.Error(err))
		}
		return
	}

	if err := Renderer.JSON(w, http.StatusOK, map[string]bool{"exists": exists}); err != nil {
		log.Errorw("failed to render response", zap.Error(err))
	}
}

// collectionResponse is the payload of the games listing.
type collectionResponse struct {
	Games []boardshelf.CollectionEntry `json:"games"`
	Stats boardshelf.Stats             `json:"stats"`
}

// @Summary List a user's collection
// @Description Returns the stored collection, filtered and sorted by query parameters
// @Tags user
// @Produce json
// @Param username path string true "BGG username"
// @Param players query int false "Player count"
// @Param players_mode query string false "possible, recommended or best"
// @Param min_time query int false "Minimum playing time"
// @Param max_time query int false "Maximum playing time"
// @Param min_weight query number false "Minimum complexity weight"
// @Param max_weight query number false "Maximum complexity weight"
// @Param expansions query bool false "Include expansions"
// @Param sort query string false "Sort field display name"
// @Param dir query string false "asc or desc"
// @Success 200 {object} collectionResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /user/{username}/games [get]
func (a *apiServer) collectionHandler(w http.ResponseWriter, r *http.Request) {
	username := sanitizedUsername(r)

	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		if err := Renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}); err != nil {
			log.Errorw("failed to render response", zap.Error(err))
		}
		return
	}

	entries, err := a.engine.FilteredGames(r.Context(), username, filters)
	if err != nil {
		log.Errorw("could not load collection", "username", username, zap.Error(err))
		if err := Renderer.JSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()}); err != nil {
			log.Errorw("failed to render response", zap.Error(err))
		}
		return
	}

	if err := Renderer.JSON(w, http.StatusOK, collectionResponse{
		Games: entries,
		Stats: boardshelf.ComputeStats(entries),
	}); err != nil {
		log.Errorw("failed to render response", zap.Error(err))
	}
}

// parseFilters maps the query string onto the filter pipeline. Absent
// parameters leave their stage inactive.
func parseFilters(q url.Values) (boardshelf.Filters, error) {
	var f boardshelf.Filters

	if v := q.Get("players"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("players: %q is not a number", v)
		}
		f.PlayerCount = &n
	}

	switch mode := q.Get("players_mode"); mode {
	case "", "possible":
		f.PlayerCountMode = boardshelf.PlayerCountPossible
	case "recommended":
		f.PlayerCountMode = boardshelf.PlayerCountRecommended
	case "best":
		f.PlayerCountMode = boardshelf.PlayerCountBest
	default:
		return f, fmt.Errorf("players_mode: unknown mode %q", mode)
	}

	var err error
	if f.MinPlayingTime, err = intParam(q, "min_time"); err != nil {
		return f, err
	}
	if f.MaxPlayingTime, err = intParam(q, "max_time"); err != nil {
		return f, err
	}
	if f.MinWeight, err = floatParam(q, "min_weight"); err != nil {
		return f, err
	}
	if f.MaxWeight, err = floatParam(q, "max_weight"); err != nil {
		return f, err
	}

	switch v := q.Get("expansions"); v {
	case "", "0", "false":
	case "1", "true":
		f.IncludeExpansions = true
	default:
		return f, fmt.Errorf("expansions: %q is not a boolean", v)
	}

	f.SortField = q.Get("sort")
	f.SortDescending = q.Get("dir") == "desc"

	return f, nil
}

func intParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", name, v)
	}
	return &n, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", name, v)
	}
	return &n, nil
}

func sanitizedUsername(r *http.Request) string {
	return strings.ToLower(ugcPolicy.Sanitize(chi.URLParamFromCtx(r.Context(), "username")))
}

func swaggerJSONHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(docs.JSON())
}

// @Summary Health check
// @Description Returns service health status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := Renderer.JSON(w, http.StatusOK, map[string]string{
		"healthy": "true",
	}); err != nil {
		log.Errorw("failed to render response", zap.Error(err))
	}
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	if err := Renderer.JSON(w, http.StatusNotFound, map[string]string{
		"error": "404: This page could not be found",
	}); err != nil {
		log.Errorw("failed to render response", zap.Error(err))
	}
}
