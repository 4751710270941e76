package api

import (
	"fmt"
	"net/http"

	"github.com/typesense/typesense-go/typesense/api"

	"github.com/chetanchaudhari789/MOBO-sub001/config"

	"github.com/chetanchaudhari789/MOBO-sub001/api/middleware"

	mobo "github.com/chetanchaudhari789/MOBO-sub001"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	mobo   *mobo.Mobo
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/campaigns", a.CreateCampaign)
	router.GET("/campaigns/:id", a.GetCampaign)
	router.GET("/campaigns", a.GetAllCampaigns)
	router.PUT("/campaigns/:id/status", a.UpdateCampaignStatus)
	router.PUT("/campaigns/:id/assignments", a.UpdateCampaignAssignments)
	router.PUT("/campaigns/:id/terms", a.UpdateCampaignTerms)
	router.POST("/campaigns/:id/release-slot", a.ReleaseSlot)
	router.DELETE("/campaigns/:id", a.DeleteCampaign)

	router.POST("/orders", a.ClaimOrder)
	router.GET("/orders/:id", a.GetOrder)
	router.GET("/orders", a.GetAllOrders)
	router.GET("/orders/:id/events", a.GetOrderEvents)
	router.GET("/orders/:id/ledger", a.GetOrderLedger)
	router.POST("/orders/:id/transition", a.TransitionOrder)
	router.POST("/orders/:id/redirect", a.RedirectOrder)
	router.POST("/orders/:id/ordered", a.MarkOrdered)
	router.POST("/orders/:id/review", a.StartReview)
	router.POST("/orders/:id/proofs", a.SubmitProofs)
	router.POST("/orders/:id/verify", a.VerifyStep)
	router.POST("/orders/:id/reject", a.RejectOrder)
	router.POST("/orders/:id/freeze", a.FreezeOrder)
	router.POST("/orders/:id/settle", a.SettleOrder)
	router.POST("/orders/:id/unsettle", a.UnsettleOrder)
	router.DELETE("/orders/:id", a.DeleteOrder)

	router.GET("/wallets/:owner_id", a.GetWallet)

	router.POST("/payouts", a.RecordPayout)
	router.GET("/payouts/:id", a.GetPayout)
	router.PUT("/payouts/:id/paid", a.MarkPayoutPaid)

	router.GET("/backup", a.BackupDB)
	router.GET("/backup-s3", a.BackupDBS3)

	router.POST("/search/:collection", a.Search)
	return a.router
}

func NewAPI(m *mobo.Mobo) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware("mobo"))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	r.POST("/webhook", func(c *gin.Context) {
		var payload map[string]interface{}
		err := c.Bind(&payload)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(payload)
		c.JSON(200, "webhook received")
	})

	return &Api{mobo: m, router: r}
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass id in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.mobo.Search(collection, &query)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}
