package web

import (
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"workdesk/internal/auth"
	"workdesk/internal/service"
)

// Server renders the HTML front end over the services.
type Server struct {
	accountSvc  *service.AccountService
	articleSvc  *service.ArticleService
	categorySvc *service.CategoryService
	taskSvc     *service.TaskService
	sessions    *auth.SessionManager
	templates   *template.Template
}

func NewServer(
	accountSvc *service.AccountService,
	articleSvc *service.ArticleService,
	categorySvc *service.CategoryService,
	taskSvc *service.TaskService,
	sessions *auth.SessionManager,
) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		accountSvc:  accountSvc,
		articleSvc:  articleSvc,
		categorySvc: categorySvc,
		taskSvc:     taskSvc,
		sessions:    sessions,
		templates:   tmpl,
	}, nil
}

// Handler builds the router with every page and the embedded static files.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.Use(recoverPanics, logRequests, s.loadUser)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.HandleFunc("/", s.home).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/article/{id:[0-9]+}", s.articleInfo).Methods(http.MethodGet)
	r.HandleFunc("/registration", s.registration).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/signin", s.signin).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/signout", s.signout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/write_article", s.requireUser(s.writeArticle)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/category/{id:[0-9]+}", s.categoryPage).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/task/{id:[0-9]+}", s.taskInfo).Methods(http.MethodGet)
	r.HandleFunc("/task/{id:[0-9]+}", s.requireUser(s.changeTaskStatus)).Methods(http.MethodPost)
	r.HandleFunc("/create_task", s.requireUser(s.createTask)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/tasks/", s.requireUser(s.myTasks)).Methods(http.MethodGet)
	r.HandleFunc("/lk", s.requireUser(s.personalPage)).Methods(http.MethodGet)
	r.HandleFunc("/user_info/{user_id:[0-9]+}", s.userInfo).Methods(http.MethodGet)
	r.HandleFunc("/search_page", s.searchPage).Methods(http.MethodGet)

	r.NotFoundHandler = recoverPanics(logRequests(s.loadUser(http.HandlerFunc(s.notFound))))
	return r
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, errPageNotFound)
}
