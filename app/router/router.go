package router

import (
	"strings"

	"github.com/aihub/chatbot-go/app/controllers"
	"github.com/beego/beego/v2/server/web"
)

// RouteGroup 路由组
type RouteGroup struct {
	prefix   string
	children []*RouteGroup
	routes   []Route
}

// Route 路由定义
type Route struct {
	Method     string
	Path       string
	Controller web.ControllerInterface
	Handler    string
}

// NewRouteGroup 创建路由组
func NewRouteGroup(prefix string) *RouteGroup {
	return &RouteGroup{prefix: prefix}
}

// Group 创建子路由组
func (rg *RouteGroup) Group(prefix string) *RouteGroup {
	child := NewRouteGroup(rg.prefix + prefix)
	rg.children = append(rg.children, child)
	return child
}

func (rg *RouteGroup) add(method, path string, c web.ControllerInterface, handler string) *RouteGroup {
	rg.routes = append(rg.routes, Route{Method: method, Path: rg.prefix + path, Controller: c, Handler: handler})
	return rg
}

// GET 添加GET路由
func (rg *RouteGroup) GET(path string, c web.ControllerInterface, handler string) *RouteGroup {
	return rg.add("get", path, c, handler)
}

// POST 添加POST路由
func (rg *RouteGroup) POST(path string, c web.ControllerInterface, handler string) *RouteGroup {
	return rg.add("post", path, c, handler)
}

// Routes 展开所有路由（含子组）
func (rg *RouteGroup) Routes() []Route {
	out := append([]Route(nil), rg.routes...)
	for _, child := range rg.children {
		out = append(out, child.Routes()...)
	}
	return out
}

// Register 注册到beego；同一路径的多个方法合并为一条映射
func (rg *RouteGroup) Register() {
	type entry struct {
		controller web.ControllerInterface
		methods    []string
	}
	order := []string{}
	byPath := map[string]*entry{}
	for _, r := range rg.Routes() {
		e, ok := byPath[r.Path]
		if !ok {
			e = &entry{controller: r.Controller}
			byPath[r.Path] = e
			order = append(order, r.Path)
		}
		e.methods = append(e.methods, r.Method+":"+r.Handler)
	}
	for _, path := range order {
		e := byPath[path]
		web.Router(path, e.controller, strings.Join(e.methods, ";"))
	}
}

// Build 服务的全部路由
func Build() *RouteGroup {
	root := NewRouteGroup("")
	root.GET("/health", &controllers.HealthController{}, "Health")
	root.GET("/metrics", &controllers.MetricsController{}, "Metrics")
	root.GET("/i/:hash", &controllers.FileController{}, "Download")

	bots := root.Group("/api/v1/chatbots")
	bots.POST("/:id/complete", &controllers.ChatController{}, "Complete")
	bots.POST("/:id/knowledge", &controllers.KnowledgeController{}, "Upload")
	return root
}

// Init registers all routes. Must be called after config is loaded.
func Init() {
	Build().Register()
}
