package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"
)

// Server represents the Fuego API server.
type Server struct {
	fuego *fuego.Server
	deps  *Dependencies
	port  int
}

// Dependencies contains the repositories the read API serves from.
type Dependencies struct {
	News      NewsRepository
	Channels  ChannelsRepository
	Images    ImagesRepository
	Stats     StatsRepository
	Bookmarks BookmarksRepository
}

// Config holds API server configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/api/docs",
				SpecURL:          "/api/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	// Set OpenAPI info
	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	// Add Chi middleware (Fuego is net/http compatible). The reader SPA may
	// be served from anywhere, hence the open cors posture.
	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Logger)
	fuego.Use(s, middleware.Recoverer)
	fuego.Use(s, cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	srv := &Server{
		fuego: s,
		deps:  deps,
		port:  cfg.Port,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	// Health check
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the API"),
		option.Tags("System"),
	)

	// News API
	newsGroup := fuego.Group(s.fuego, "/api/news",
		option.Tags("News"),
	)

	fuego.Get(newsGroup, "/", s.listNews,
		option.Summary("List News"),
		option.Description("Returns a page of collected messages newest-first with album siblings folded together. Duplicates and forwards are excluded unless asked for."),
		option.Query("channel_id", "Filter by Telegram channel id"),
		option.Query("category", "Filter by channel category"),
		option.Query("date_from", "Only messages at or after this date (RFC 3339 or YYYY-MM-DD)"),
		option.Query("date_to", "Only messages at or before this date (RFC 3339 or YYYY-MM-DD)"),
		option.Query("q", "Substring search over message text"),
		option.Query("include_duplicates", "Include duplicate messages (default: false)"),
		option.Query("include_forwarded", "Include forwarded messages (default: false)"),
		option.Query("page", "Page number (1-indexed, default: 1)"),
		option.Query("limit", "Messages per page (default: 50, max: 100)"),
	)

	fuego.Get(newsGroup, "/{channelID}/{messageID}", s.getNewsItem,
		option.Summary("Get News Item"),
		option.Description("Returns one message with its images, its album siblings, and the resolved original when it is a duplicate"),
	)

	// Channels API
	fuego.Get(s.fuego, "/api/channels", s.listChannels,
		option.Summary("List Channels"),
		option.Description("Returns registered channels with their message counts"),
		option.Tags("Channels"),
	)

	// Stats API
	fuego.Get(s.fuego, "/api/stats", s.getStats,
		option.Summary("Get Statistics"),
		option.Description("Returns dashboard totals over messages, images and channels"),
		option.Tags("Analytics"),
	)

	// Bookmarks API
	bookmarksGroup := fuego.Group(s.fuego, "/api/bookmarks",
		option.Tags("Bookmarks"),
	)

	fuego.Get(bookmarksGroup, "/", s.listBookmarks,
		option.Summary("List Bookmarks"),
		option.Description("Returns bookmarked messages newest-first"),
	)

	fuego.Put(bookmarksGroup, "/{channelID}/{messageID}", s.addBookmark,
		option.Summary("Add Bookmark"),
		option.Description("Bookmarks a message; re-adding updates the note"),
	)

	fuego.Delete(bookmarksGroup, "/{channelID}/{messageID}", s.removeBookmark,
		option.Summary("Remove Bookmark"),
		option.Description("Removes a bookmark; removing a missing bookmark is a no-op"),
	)
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.fuego.Shutdown(ctx)
}

// Mux returns the underlying ServeMux for mounting additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.fuego.Mux
}
