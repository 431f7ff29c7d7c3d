// Package clienttest runs an in-process Library API for tests.
package clienttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/library-admin/internal/model"
)

// Call is one request the server received.
type Call struct {
	Method     string
	Path       string
	Permission string
	RequestID  string
	Body       model.BookCodeRequest
}

// Server is a minimal stand-in for the Library API. Gated routes answer 403
// unless X-permission equals Permission.
type Server struct {
	*httptest.Server

	Token      string
	Permission string

	mu        sync.Mutex
	orders    []model.Order
	groups    []model.GroupPermission
	history   []model.OrderHistory
	books     []model.Book
	bookCodes map[int64]string
	calls     []Call
	fail      map[string]int
}

func NewServer(token, permission string) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Token:      token,
		Permission: permission,
		bookCodes:  map[int64]string{},
		fail:       map[string]int{},
	}

	r := gin.New()
	r.Use(s.record, s.auth)
	r.GET("/api/group-permissions", s.listGroupPermissions)

	gated := r.Group("/api", s.gate)
	{
		gated.GET("/user-order", s.listOrders)
		gated.PATCH("/user-order/:id/ready", s.setStatus(model.StatusReady))
		gated.PATCH("/user-order/:id/reject", s.setStatus(model.StatusArchived))
		gated.DELETE("/user-order/:id", s.deleteOrder)
		gated.POST("/user-order/:id/checked", s.withBookCode(model.StatusCheckedOut))
		gated.POST("/user-order/:id/return-check", s.withBookCode(model.StatusReturnPending))
		gated.GET("/order-history", s.listHistory)
		gated.GET("/books", s.listBooks)
	}

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) SetGroupPermissions(gps ...model.GroupPermission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = gps
}

func (s *Server) SetOrders(orders ...model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]model.Order(nil), orders...)
}

func (s *Server) SetHistory(records ...model.OrderHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = records
}

func (s *Server) SetBooks(books ...model.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = books
}

// SetBookCode makes checkout and return of order id require code.
func (s *Server) SetBookCode(id int64, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookCodes[id] = code
}

// FailNext makes the next n requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[path] = n
}

func (s *Server) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.orders...)
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo counts requests whose path is path.
func (s *Server) CallsTo(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(c *gin.Context) {
	call := Call{
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		Permission: c.GetHeader("X-permission"),
		RequestID:  c.GetHeader("X-Request-ID"),
	}
	if c.Request.Method == http.MethodPost {
		// plain decode; gin's binding would run the validator on the tags
		_ = json.NewDecoder(c.Request.Body).Decode(&call.Body)
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	n := s.fail[call.Path]
	if n > 0 {
		s.fail[call.Path] = n - 1
	}
	s.mu.Unlock()

	if n > 0 {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server xatosi"})
		return
	}
	c.Set("body", call.Body)
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+s.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Avtorizatsiya talab qilinadi"})
		return
	}
	c.Next()
}

func (s *Server) gate(c *gin.Context) {
	if c.GetHeader("X-permission") != s.Permission {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Ruxsat yo'q"})
		return
	}
	c.Next()
}

func (s *Server) listGroupPermissions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.groups})
}

func (s *Server) listOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.orders})
}

func (s *Server) listHistory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.history})
}

func (s *Server) listBooks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.books})
}

func (s *Server) setStatus(status model.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.update(c, status)
	}
}

func (s *Server) withBookCode(status model.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := c.MustGet("body").(model.BookCodeRequest)
		if strings.TrimSpace(body.BookCode) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "book_code majburiy"})
			return
		}
		id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		s.mu.Lock()
		want, ok := s.bookCodes[id]
		s.mu.Unlock()
		if ok && want != body.BookCode {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Kitob kodi noto'g'ri"})
			return
		}
		s.update(c, status)
	}
}

func (s *Server) update(c *gin.Context, status model.OrderStatus) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].StatusID = status
			s.history = append(s.history, model.OrderHistory{
				ID:        int64(len(s.history) + 1),
				OrderID:   id,
				StatusID:  status,
				CreatedAt: time.Now().UTC(),
			})
			c.JSON(http.StatusOK, gin.H{"data": s.orders[i]})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Buyurtma topilmadi"})
}

func (s *Server) deleteOrder(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Buyurtma topilmadi"})
}
