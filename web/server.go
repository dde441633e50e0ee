// JSON HTTP接口与websocket推送
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/forecast"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/route"
)

// Backend HTTP接口依赖的模拟能力
type Backend interface {
	Status() junction.Status                                      // 最新状态快照
	Route(from, to entity.Direction) route.Result                 // 最短路径
	Forecast() []forecast.Sample                                  // 基于当前实时计数的预测
	SetLiveCounts(counts map[entity.Direction]int)                // 写入实时计数
	SetEmergency(d entity.Direction)                              // 标记紧急方向
	ClearEmergency()                                              // 取消紧急状态
	PickEmergency(candidates []entity.Direction) entity.Direction // 在候选方向中随机选择紧急方向
}

// Server HTTP服务
type Server struct {
	backend Backend
	hub     *Hub
	router  *gin.Engine
	srv     *http.Server
}

// New 创建HTTP服务并注册全部路由
func New(backend Backend) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.Default())

	s := &Server{backend: backend, hub: NewHub(), router: router}
	api := router.Group("/api")
	api.GET("/signal-status", s.signalStatus)
	api.GET("/route", s.route)
	api.GET("/forecast", s.forecast)
	api.POST("/live", s.live)
	api.POST("/optimize-signal", s.optimizeSignal)
	api.PUT("/emergency", s.setEmergency)
	api.DELETE("/emergency", s.clearEmergency)
	router.GET("/ws", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request)
	})
	return s
}

// requestLogger 以Debug级别记录每个请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Handler 路由，供测试与自定义监听使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub websocket广播中心
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start 在后台监听addr
func (s *Server) Start(addr string) {
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	go func() {
		log.Infof("http api listening on %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panicf("http api: %v", err)
		}
	}()
}

// Shutdown 停止监听
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) signalStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Status())
}

type routeQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

type routeResponse struct {
	Path      []entity.Direction `json:"path"`
	TotalCost *int               `json:"totalCost"`
}

func (s *Server) route(c *gin.Context) {
	var q routeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, errors.New("missing from or to"))
		return
	}
	from, err := entity.ParseDirection(q.From)
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := entity.ParseDirection(q.To)
	if err != nil {
		badRequest(c, err)
		return
	}
	res := s.backend.Route(from, to)
	out := routeResponse{Path: res.Path}
	if res.Reachable {
		out.TotalCost = lo.ToPtr(res.Cost)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) forecast(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Forecast())
}

func (s *Server) live(c *gin.Context) {
	var raw map[string]int
	if err := c.ShouldBindJSON(&raw); err != nil {
		badRequest(c, err)
		return
	}
	counts, err := entity.ParseCounts(raw)
	if err != nil {
		badRequest(c, err)
		return
	}
	if _, bad := lo.FindKeyBy(counts, func(_ entity.Direction, n int) bool { return n < 0 }); bad {
		badRequest(c, errors.New("live counts must be non-negative"))
		return
	}
	s.backend.SetLiveCounts(counts)
	c.Status(http.StatusNoContent)
}

type optimizeRequest struct {
	Traffic       map[string]int `json:"traffic" binding:"required"`
	EmergencyMode bool           `json:"emergency_mode"`
}

type optimizeResponse struct {
	GreenSignal        entity.Direction  `json:"green_signal"`
	IsEmergency        bool              `json:"is_emergency"`
	EmergencyDirection *entity.Direction `json:"emergency_direction"`
	Message            string            `json:"message"`
}

// optimizeSignal 根据请求中的计数选择绿灯方向，不修改模拟状态
// 说明：emergency_mode为true时在请求给出的方向中随机选一个作为紧急方向
func (s *Server) optimizeSignal(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	counts, err := entity.ParseCounts(req.Traffic)
	if err != nil {
		badRequest(c, err)
		return
	}
	var out optimizeResponse
	var emergencies []entity.Direction
	if req.EmergencyMode {
		candidates := lo.Filter(entity.Directions[:], func(d entity.Direction, _ int) bool {
			_, ok := counts[d]
			return ok
		})
		if len(candidates) == 0 {
			candidates = entity.Directions[:]
		}
		d := s.backend.PickEmergency(candidates)
		out.EmergencyDirection = &d
		emergencies = append(emergencies, d)
	}
	res := trafficlight.Optimize(counts, emergencies...)
	out.GreenSignal = res.Green
	out.IsEmergency = res.Emergency
	out.Message = "Normal priority"
	if res.Emergency {
		out.Message = res.Green.String() + " has emergency vehicle"
	}
	c.JSON(http.StatusOK, out)
}

type emergencyResponse struct {
	Direction entity.Direction `json:"direction"`
}

func (s *Server) setEmergency(c *gin.Context) {
	var raw map[string]string
	if err := c.ShouldBindJSON(&raw); err != nil {
		badRequest(c, err)
		return
	}
	d, err := entity.ParseDirection(raw["direction"])
	if err != nil {
		badRequest(c, err)
		return
	}
	s.backend.SetEmergency(d)
	c.JSON(http.StatusAccepted, emergencyResponse{Direction: d})
}

func (s *Server) clearEmergency(c *gin.Context) {
	s.backend.ClearEmergency()
	c.Status(http.StatusNoContent)
}
