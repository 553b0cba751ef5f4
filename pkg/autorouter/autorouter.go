// Package autorouter registers handler struct methods as HTTP routes by reflection.
// Method Get on a handler registered with prefix "/api/v1/" and method prefix
// "account." is served at "/api/v1/account.Get".
package autorouter

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/pkg/logger"
)

// HandlerFunc represents the expected handler function signature
type HandlerFunc func(http.ResponseWriter, *http.Request)

// Middleware represents middleware function signature
type Middleware func(http.Handler) http.Handler

// RegistrationOptions configures how handlers are registered
type RegistrationOptions struct {
	Prefix       string       // URL prefix (e.g., "/api/v1/")
	MethodPrefix string       // Method prefix (e.g., "account." -> "account.Get")
	Middleware   []Middleware // Middleware chain to apply
	Methods      []string     // Allowed HTTP methods; empty allows all
	Logger       *logger.Logger
}

// HandlerInfo describes one registered route
type HandlerInfo struct {
	URLPath    string `json:"path"`
	MethodName string `json:"method"`
	HasAuth    bool   `json:"auth"`
}

// routeTable is shared by routers derived from the same root
type routeTable struct {
	mutex  sync.Mutex
	routes []HandlerInfo
}

// AutoRouter handles automatic registration of HTTP handlers using reflection
type AutoRouter struct {
	mux     *http.ServeMux
	options RegistrationOptions
	hasAuth bool
	table   *routeTable
}

var (
	errorInterface     = reflect.TypeOf((*error)(nil)).Elem()
	responseWriterType = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	requestType        = reflect.TypeOf((*http.Request)(nil))
)

// NewAutoRouter creates a new auto router
func NewAutoRouter(mux *http.ServeMux, options RegistrationOptions) *AutoRouter {
	if options.Logger == nil {
		options.Logger = logger.NewNop()
	}
	options.Logger = options.Logger.WithComponent("autorouter")

	return &AutoRouter{
		mux:     mux,
		options: options,
		table:   &routeTable{},
	}
}

// WithMethodPrefix returns a router sharing mux, options and route table but using methodPrefix
func (ar *AutoRouter) WithMethodPrefix(methodPrefix string) *AutoRouter {
	derived := *ar
	derived.options.MethodPrefix = methodPrefix
	return &derived
}

// RegisterHandlers registers every exported method of handler that has the
// signature func(http.ResponseWriter, *http.Request) [error].
// Methods named Handle* are skipped.
func (ar *AutoRouter) RegisterHandlers(handler interface{}) error {
	methods, err := ar.handlerMethods(handler)
	if err != nil {
		return err
	}

	for _, name := range methods {
		method := reflect.ValueOf(handler).MethodByName(name)
		ar.register(ar.buildURLPath(name), name, method)
	}
	return nil
}

// RegisterHandlersWithAuth registers handlers with authentication middleware in front
func (ar *AutoRouter) RegisterHandlersWithAuth(handler interface{}, authMiddleware Middleware) error {
	withAuth := *ar
	withAuth.options.Middleware = append([]Middleware{authMiddleware}, ar.options.Middleware...)
	withAuth.hasAuth = true

	return withAuth.RegisterHandlers(handler)
}

// RegisterSingleMethod registers a single method with custom path
func (ar *AutoRouter) RegisterSingleMethod(handler interface{}, methodName string, customPath string) error {
	method := reflect.ValueOf(handler).MethodByName(methodName)
	if !method.IsValid() {
		return fmt.Errorf("method %s not found", methodName)
	}

	if !isValidHandlerFunc(method) {
		return fmt.Errorf("method %s does not match handler signature", methodName)
	}

	ar.register(ar.options.Prefix+customPath, methodName, method)
	return nil
}

// RegisterSingleMethodWithAuth registers a single method at customPath behind authMiddleware
func (ar *AutoRouter) RegisterSingleMethodWithAuth(handler interface{}, methodName string, customPath string, authMiddleware Middleware) error {
	withAuth := *ar
	withAuth.options.Middleware = append([]Middleware{authMiddleware}, ar.options.Middleware...)
	withAuth.hasAuth = true

	return withAuth.RegisterSingleMethod(handler, methodName, customPath)
}

// GetRegisteredHandlers returns the routes RegisterHandlers would create for handler
func (ar *AutoRouter) GetRegisteredHandlers(handler interface{}) []HandlerInfo {
	methods, err := ar.handlerMethods(handler)
	if err != nil {
		return nil
	}

	handlers := make([]HandlerInfo, 0, len(methods))
	for _, name := range methods {
		handlers = append(handlers, HandlerInfo{
			URLPath:    ar.buildURLPath(name),
			MethodName: name,
			HasAuth:    ar.hasAuth,
		})
	}
	return handlers
}

// Routes returns every route registered through this router or routers derived from it, sorted by path
func (ar *AutoRouter) Routes() []HandlerInfo {
	ar.table.mutex.Lock()
	defer ar.table.mutex.Unlock()

	routes := append([]HandlerInfo(nil), ar.table.routes...)
	sort.Slice(routes, func(i, j int) bool { return routes[i].URLPath < routes[j].URLPath })
	return routes
}

func (ar *AutoRouter) handlerMethods(handler interface{}) ([]string, error) {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil {
		return nil, fmt.Errorf("handler must be a struct or pointer to struct")
	}

	structType := handlerType
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("handler must be a struct or pointer to struct")
	}

	handlerValue := reflect.ValueOf(handler)
	var names []string
	for i := 0; i < handlerValue.NumMethod(); i++ {
		name := handlerType.Method(i).Name
		if strings.HasPrefix(name, "Handle") {
			continue
		}
		if !isValidHandlerFunc(handlerValue.Method(i)) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (ar *AutoRouter) register(urlPath, methodName string, method reflect.Value) {
	ar.mux.Handle(urlPath, ar.applyMiddleware(ar.createHandlerFunc(method)))

	ar.table.mutex.Lock()
	ar.table.routes = append(ar.table.routes, HandlerInfo{
		URLPath:    urlPath,
		MethodName: methodName,
		HasAuth:    ar.hasAuth,
	})
	ar.table.mutex.Unlock()

	ar.options.Logger.Debug("Route registered",
		zap.String("path", urlPath),
		zap.String("method", methodName),
		zap.Bool("auth", ar.hasAuth))
}

// isValidHandlerFunc checks func(http.ResponseWriter, *http.Request) with an optional error result
func isValidHandlerFunc(method reflect.Value) bool {
	methodType := method.Type()

	if methodType.Kind() != reflect.Func || methodType.NumIn() != 2 || methodType.NumOut() > 1 {
		return false
	}
	if methodType.NumOut() == 1 && !methodType.Out(0).Implements(errorInterface) {
		return false
	}

	return methodType.In(0).Implements(responseWriterType) && methodType.In(1) == requestType
}

// buildURLPath constructs the URL path from method name
func (ar *AutoRouter) buildURLPath(methodName string) string {
	if ar.options.MethodPrefix != "" {
		return ar.options.Prefix + ar.options.MethodPrefix + methodName
	}
	return ar.options.Prefix + strings.ToLower(methodName)
}

func (ar *AutoRouter) createHandlerFunc(method reflect.Value) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ar.methodAllowed(r.Method) {
			w.Header().Set("Allow", strings.Join(ar.options.Methods, ", "))
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		results := method.Call([]reflect.Value{reflect.ValueOf(w), reflect.ValueOf(r)})

		if len(results) > 0 && !results[0].IsNil() {
			err := results[0].Interface().(error)
			ar.options.Logger.Error("Handler returned error", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func (ar *AutoRouter) methodAllowed(method string) bool {
	if len(ar.options.Methods) == 0 {
		return true
	}
	for _, allowed := range ar.options.Methods {
		if strings.EqualFold(allowed, method) {
			return true
		}
	}
	return false
}

// applyMiddleware applies all configured middleware to the handler
func (ar *AutoRouter) applyMiddleware(handler http.Handler) http.Handler {
	for i := len(ar.options.Middleware) - 1; i >= 0; i-- {
		handler = ar.options.Middleware[i](handler)
	}
	return handler
}

// QuickRegister is a convenience function for simple handler registration
func QuickRegister(mux *http.ServeMux, prefix string, methodPrefix string, handler interface{}) error {
	router := NewAutoRouter(mux, RegistrationOptions{
		Prefix:       prefix,
		MethodPrefix: methodPrefix,
	})
	return router.RegisterHandlers(handler)
}
