package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"workdesk/internal/service"
)

func pathID(r *http.Request, key string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[key], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s %q", service.ErrNotFound, key, mux.Vars(r)[key])
	}
	return uint(id), nil
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articleSvc.List(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	board, err := s.taskSvc.Board(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, "Главная")
	data["Articles"] = articles
	data["Board"] = board
	s.render(w, http.StatusOK, "main.html", data)
}

func (s *Server) articleInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	article, err := s.articleSvc.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, article.Title)
	data["Article"] = article
	s.render(w, http.StatusOK, "article_info.html", data)
}

func (s *Server) categoryPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	category, articles, err := s.articleSvc.ByCategory(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, category.Name)
	data["Heading"] = category.Name
	data["Articles"] = articles
	s.render(w, http.StatusOK, "main.html", data)
}

func (s *Server) userInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	author, articles, err := s.articleSvc.ByAuthor(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, author.FullName())
	data["Author"] = author
	data["Articles"] = articles
	s.render(w, http.StatusOK, "user_info.html", data)
}

func (s *Server) searchPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	articles, err := s.articleSvc.Search(r.Context(), q)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, "Поиск")
	data["Query"] = q
	data["Articles"] = articles
	if strings.TrimSpace(q) != "" {
		data["Heading"] = fmt.Sprintf("Поиск: %s", q)
	}
	s.render(w, http.StatusOK, "main.html", data)
}

func (s *Server) writeArticle(w http.ResponseWriter, r *http.Request) {
	data := s.page(r, "Новая статья")
	if r.Method != http.MethodPost {
		data["Form"] = map[string]string{}
		s.render(w, http.StatusOK, "write_article.html", data)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, &service.ValidationError{Fields: map[string]string{"form": err.Error()}})
		return
	}
	form := map[string]string{
		"title":    r.PostFormValue("title"),
		"text":     r.PostFormValue("text"),
		"category": r.PostFormValue("category"),
	}
	input := service.ArticleInput{Title: form["title"], Text: form["text"]}
	if raw := strings.TrimSpace(form["category"]); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			data["Form"] = form
			data["Errors"] = map[string]string{"category": "Выберите существующую категорию."}
			s.render(w, http.StatusBadRequest, "write_article.html", data)
			return
		}
		categoryID := uint(id)
		input.CategoryID = &categoryID
	}

	if _, err := s.articleSvc.Write(r.Context(), currentUser(r), input); err != nil {
		if fields, ok := fieldErrors(err); ok {
			data["Form"] = form
			data["Errors"] = fields
			s.render(w, http.StatusBadRequest, "write_article.html", data)
			return
		}
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
