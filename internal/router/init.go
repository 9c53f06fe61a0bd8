package router

import (
	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/internal/container"
	pginfra "github.com/mundotango/mundo-tango-api/internal/infrastructure/postgres"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/router/modules"
)

// Deps holds the services built from the container. main uses it for
// startup work such as the initial search reindex.
type Deps struct {
	Users          *app.UserService
	Accounts       *app.AccountService
	Feed           *app.FeedService
	Search         *app.SearchService
	Recommendation *app.RecommendationService
	Listings       *app.ListingService
	Pricing        *app.PricingService
	Community      *app.CommunityService
	Sources        app.SearchSources
}

// remoteSearcher returns the Elasticsearch backend when enabled, as a nil
// interface otherwise.
func remoteSearcher() search.Searcher {
	cfg := container.GetConfig()
	if !cfg.SearchUseElastic || container.GetES() == nil {
		return nil
	}
	return search.NewElastic(container.GetES(), cfg.ESContentIndex)
}

func BuildDeps() *Deps {
	cfg := container.GetConfig()
	pool := container.GetPGPool()
	logger := container.GetLogger()
	c := container.GetCache()

	users := pginfra.NewUserRepository(pool)
	follows := pginfra.NewFollowRepository(pool)
	posts := pginfra.NewPostRepository(pool)
	groups := pginfra.NewGroupRepository(pool)
	events := pginfra.NewEventRepository(pool)
	homes := pginfra.NewHostHomeRepository(pool)
	tiers := pginfra.NewSubscriptionTierRepository(pool)

	searchSvc := app.NewSearchService(nil, remoteSearcher(), container.GetIndexPub(), logger)
	recs := app.NewRecommendationService(users, follows, groups, events, c, container.GetEmailPub(), logger, cfg.RecommendationTTL)
	recs.CompanyName = cfg.CompanyName
	recs.AppURL = cfg.AppURL
	recs.UnsubscribeURL = cfg.UnsubscribeURL

	accounts := app.NewAccountService(users, c, container.GetEmailPub(), container.GetRedis(), logger)
	accounts.CompanyName = cfg.CompanyName
	accounts.VerifyURL = cfg.VerifyEmailURL
	accounts.ResetURL = cfg.ResetPasswordURL

	d := &Deps{
		Accounts:       accounts,
		Users:          app.NewUserService(users, container.GetJWT(), container.GetUploader(), container.GetRedis(), c, searchSvc, logger),
		Feed:           app.NewFeedService(posts, follows, users, c, searchSvc, logger, cfg.FeedCacheTTL),
		Search:         searchSvc,
		Recommendation: recs,
		Listings:       app.NewListingService(homes, container.GetUploader(), searchSvc, logger),
		Pricing:        app.NewPricingService(tiers, c, cfg.CacheDefaultTTL),
		Community:      app.NewCommunityService(groups, events, searchSvc, recs, logger),
		Sources:        app.SearchSources{Users: users, Posts: posts, Events: events, Groups: groups, Homes: homes},
	}

	if w := container.GetWarmer(); w != nil {
		w.Register(app.FeedKeyPrefix, d.Feed.WarmLoader())
		w.Register(app.RecKeyPrefix, d.Recommendation.WarmLoader())
		w.Register(app.PricingTiersKey, d.Pricing.WarmLoader())
	}
	return d
}

// InitModules builds every feature module and registers it with the router
// registry. It should be called once during startup, after the container is
// populated.
func InitModules(r *Registry) *Deps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	jwt := container.GetJWT()
	d := BuildDeps()

	users := handlers.NewUserHandler(d.Users, logger, cfg.CookieDomain, cfg.CookieSecure)
	r.Add(modules.NewAuthModule(users, handlers.NewAccountHandler(d.Accounts, logger), jwt))
	r.Add(modules.NewUserModule(users, handlers.NewFeedHandler(d.Feed, logger), jwt))
	r.Add(modules.NewSearchModule(handlers.NewSearchHandler(d.Search, logger)))
	r.Add(modules.NewRecommendationModule(handlers.NewRecommendationHandler(d.Recommendation, logger), jwt))
	r.Add(modules.NewEmailModule(handlers.NewEmailHandler(d.Recommendation, logger, cfg.MailSendEnabled), jwt))
	r.Add(modules.NewListingModule(handlers.NewListingHandler(d.Listings, logger), handlers.NewPricingHandler(d.Pricing, logger), jwt))

	var chat *handlers.ChatHandler
	if cfg.ChatEnabled && container.GetHub() != nil {
		chat = handlers.NewChatHandler(d.Community, container.GetHub(), logger, cfg.CORSOrigins())
	}
	r.Add(modules.NewCommunityModule(handlers.NewCommunityHandler(d.Community, logger), chat, jwt))
	r.Add(modules.NewAdminModule(handlers.NewCacheHandler(container.GetCache(), container.GetWarmer(), logger)))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(d.Search.Memory()))
	}
	return d
}
