package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"workdesk/internal/auth"
	"workdesk/internal/model"
	"workdesk/internal/repository"
	"workdesk/internal/service"
)

type testApp struct {
	srv     *Server
	handler http.Handler
	tasks   *repository.TaskRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:web_%s?mode=memory&cache=shared&_foreign_keys=on", name))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	users := repository.NewUserRepository(db)
	categories := repository.NewCategoryRepository(db)
	articles := repository.NewArticleRepository(db)
	tasks := repository.NewTaskRepository(db)

	srv, err := NewServer(
		service.NewAccountService(users, bcrypt.MinCost),
		service.NewArticleService(articles, categories, users),
		service.NewCategoryService(categories),
		service.NewTaskService(tasks, users),
		auth.NewSessionManager("test-secret", time.Hour, false),
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &testApp{srv: srv, handler: srv.Handler(), tasks: tasks}
}

func (a *testApp) register(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := a.srv.accountSvc.Register(context.Background(), service.RegistrationInput{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Имя",
		LastName:  username,
		Password1: "secret-pass",
		Password2: "secret-pass",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func (a *testApp) cookieFor(t *testing.T, user *model.User) *http.Cookie {
	t.Helper()
	token, err := a.srv.sessions.Issue(user.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: "workdesk_session", Value: token}
}

func (a *testApp) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "workdesk_session" {
			return c
		}
	}
	return nil
}

func TestRegistrationStartsSession(t *testing.T) {
	app := newTestApp(t)
	form := url.Values{
		"username":  {"ivan"},
		"email":     {"ivan@example.com"},
		"firstName": {"Иван"},
		"lastName":  {"Петров"},
		"password1": {"long-enough-1"},
		"password2": {"long-enough-1"},
	}

	rec := app.do(t, http.MethodPost, "/registration", form, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no session cookie set")
	}

	rec = app.do(t, http.MethodGet, "/lk", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("lk status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Иван Петров") || !strings.Contains(body, "/link ") {
		t.Errorf("lk page does not show the new user:\n%s", body)
	}
}

func TestRegistrationErrorsRerenderForm(t *testing.T) {
	app := newTestApp(t)
	form := url.Values{
		"username":  {"ivan"},
		"email":     {"ivan@example.com"},
		"firstName": {"Иван"},
		"lastName":  {"Петров"},
		"password1": {"long-enough-1"},
		"password2": {"different-2"},
	}

	rec := app.do(t, http.MethodPost, "/registration", form, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if sessionCookie(rec) != nil {
		t.Error("session started for invalid registration")
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Пароли не совпадают.") || !strings.Contains(body, `value="ivan"`) {
		t.Errorf("form not re-rendered with errors:\n%s", body)
	}
}

func TestSignIn(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "ivan")

	rec := app.do(t, http.MethodPost, "/signin", url.Values{"email": {"nobody@example.com"}, "password": {"secret-pass"}}, nil)
	if rec.Code != http.StatusUnauthorized || sessionCookie(rec) != nil {
		t.Errorf("unknown email: status = %d, cookie = %v", rec.Code, sessionCookie(rec))
	}

	rec = app.do(t, http.MethodPost, "/signin", url.Values{"email": {"ivan@example.com"}, "password": {"wrong-pass"}}, nil)
	if rec.Code != http.StatusUnauthorized || sessionCookie(rec) != nil {
		t.Errorf("wrong password: status = %d, cookie = %v", rec.Code, sessionCookie(rec))
	}

	rec = app.do(t, http.MethodPost, "/signin", url.Values{"email": {"IVAN@example.com"}, "password": {"secret-pass"}}, nil)
	if rec.Code != http.StatusSeeOther || sessionCookie(rec) == nil {
		t.Errorf("valid sign in: status = %d, cookie = %v", rec.Code, sessionCookie(rec))
	}
}

func TestSignout(t *testing.T) {
	app := newTestApp(t)
	cookie := app.cookieFor(t, app.register(t, "ivan"))

	rec := app.do(t, http.MethodGet, "/signout", nil, cookie)
	if rec.Code != http.StatusSeeOther || sessionCookie(rec) != nil {
		t.Errorf("GET signout: status = %d, cookie = %v", rec.Code, sessionCookie(rec))
	}

	rec = app.do(t, http.MethodPost, "/signout", url.Values{}, cookie)
	cleared := sessionCookie(rec)
	if rec.Code != http.StatusSeeOther || cleared == nil || cleared.MaxAge >= 0 {
		t.Errorf("POST signout: status = %d, cookie = %+v", rec.Code, cleared)
	}
}

func TestUnknownPagesRender404(t *testing.T) {
	app := newTestApp(t)
	for _, target := range []string{"/article/999", "/task/999", "/category/999", "/user_info/999", "/no-such-page"} {
		rec := app.do(t, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), "Страница не найдена.") {
			t.Errorf("%s: error page not rendered", target)
		}
	}
}

func TestAuthenticatedPagesRedirectToSignIn(t *testing.T) {
	app := newTestApp(t)
	for _, target := range []string{"/write_article", "/create_task", "/tasks/", "/lk"} {
		rec := app.do(t, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin" {
			t.Errorf("%s: status = %d, location = %q", target, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestWriteArticleAndSearch(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	cookie := app.cookieFor(t, app.register(t, "writer"))
	category, err := app.srv.categorySvc.Create(ctx, "Заметки")
	if err != nil {
		t.Fatal(err)
	}

	for _, form := range []url.Values{
		{"title": {"Про Kubernetes"}, "text": {"**Жирный** текст"}, "category": {fmt.Sprint(category.ID)}},
		{"title": {"Рецепт"}, "text": {"Борщ"}, "category": {""}},
	} {
		rec := app.do(t, http.MethodPost, "/write_article", form, cookie)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("write %q: status = %d\n%s", form.Get("title"), rec.Code, rec.Body.String())
		}
	}

	rec := app.do(t, http.MethodGet, "/search_page?q="+url.QueryEscape("kubernetes"), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Про Kubernetes") || strings.Contains(body, "Рецепт") {
		t.Errorf("search results wrong:\n%s", body)
	}

	articles, err := app.srv.articleSvc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var id uint
	for _, a := range articles {
		if a.Title == "Про Kubernetes" {
			id = a.ID
		}
	}
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/article/%d", id), nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<strong>Жирный</strong>") {
		t.Errorf("article page status = %d, markdown not rendered:\n%s", rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/category/%d", category.ID), nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Про Kubernetes") || strings.Contains(rec.Body.String(), "Рецепт") {
		t.Errorf("category page status = %d:\n%s", rec.Code, rec.Body.String())
	}
}

func TestWriteArticleValidation(t *testing.T) {
	app := newTestApp(t)
	cookie := app.cookieFor(t, app.register(t, "writer"))

	rec := app.do(t, http.MethodPost, "/write_article", url.Values{"title": {""}, "text": {"x"}, "category": {"abc"}}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad category id: status = %d", rec.Code)
	}
	rec = app.do(t, http.MethodPost, "/write_article", url.Values{"title": {""}, "text": {"x"}}, cookie)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Обязательное поле.") {
		t.Errorf("empty title: status = %d", rec.Code)
	}
}

func TestTaskStatusChangeByRecipientOnly(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	boss := app.register(t, "boss")
	worker := app.register(t, "worker")
	bossCookie := app.cookieFor(t, boss)
	workerCookie := app.cookieFor(t, worker)

	rec := app.do(t, http.MethodPost, "/create_task", url.Values{
		"title":   {"Отчёт"},
		"text":    {"К пятнице"},
		"status":  {"assigned"},
		"user_to": {"worker"},
	}, bossCookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create task status = %d\n%s", rec.Code, rec.Body.String())
	}
	assigned, err := app.tasks.ListByStatus(ctx, model.StatusAssigned, &worker.ID)
	if err != nil || len(assigned) != 1 {
		t.Fatalf("assigned tasks = %v, %v", assigned, err)
	}
	target := fmt.Sprintf("/task/%d", assigned[0].ID)

	rec = app.do(t, http.MethodPost, target, url.Values{"new_status": {"done"}}, workerCookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != target {
		t.Errorf("post without change_status: status = %d", rec.Code)
	}
	task, err := app.tasks.FindByID(ctx, assigned[0].ID)
	if err != nil || task.Status != model.StatusAssigned {
		t.Fatalf("post without change_status changed task: %+v, %v", task, err)
	}

	change := func(status string) url.Values {
		return url.Values{"new_status": {status}, "change_status": {"1"}}
	}
	rec = app.do(t, http.MethodPost, target, change("done"), bossCookie)
	if rec.Code != http.StatusForbidden {
		t.Errorf("sender change: status = %d, want 403", rec.Code)
	}
	rec = app.do(t, http.MethodPost, target, change("finished"), workerCookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status: code = %d, want 400", rec.Code)
	}
	rec = app.do(t, http.MethodPost, target, change("done"), nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin" {
		t.Errorf("anonymous change: status = %d", rec.Code)
	}

	rec = app.do(t, http.MethodPost, target, change("done"), workerCookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != target {
		t.Fatalf("recipient change: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	task, err = app.tasks.FindByID(ctx, assigned[0].ID)
	if err != nil || task.Status != model.StatusDone {
		t.Errorf("task after change = %+v, %v", task, err)
	}

	rec = app.do(t, http.MethodGet, "/tasks/", nil, workerCookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Отчёт") {
		t.Errorf("my tasks status = %d", rec.Code)
	}
}

func TestCreateTaskUnknownRecipient(t *testing.T) {
	app := newTestApp(t)
	cookie := app.cookieFor(t, app.register(t, "boss"))

	rec := app.do(t, http.MethodPost, "/create_task", url.Values{
		"title":   {"Отчёт"},
		"text":    {"К пятнице"},
		"user_to": {"ghost"},
	}, cookie)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "не найден") {
		t.Errorf("status = %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestFormsKeepSelectedOptions(t *testing.T) {
	app := newTestApp(t)
	cookie := app.cookieFor(t, app.register(t, "author"))
	category, err := app.srv.categorySvc.Create(context.Background(), "Заметки")
	if err != nil {
		t.Fatal(err)
	}

	rec := app.do(t, http.MethodPost, "/write_article", url.Values{
		"title":    {""},
		"text":     {"x"},
		"category": {fmt.Sprint(category.ID)},
	}, cookie)
	want := fmt.Sprintf(`value="%d" selected`, category.ID)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), want) {
		t.Errorf("write_article: status = %d, missing %q", rec.Code, want)
	}

	rec = app.do(t, http.MethodGet, "/create_task", nil, cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `value="assigned" selected`) {
		t.Errorf("create_task: status = %d\n%s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `value="done" selected`) {
		t.Error("more than one status selected")
	}
}

func TestHomeAndStatic(t *testing.T) {
	app := newTestApp(t)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := app.do(t, method, "/", url.Values{}, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s /: status = %d", method, rec.Code)
		}
	}
	rec := app.do(t, http.MethodGet, "/static/style.css", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".board") {
		t.Errorf("static status = %d", rec.Code)
	}
}

func TestStaleSessionIsCleared(t *testing.T) {
	app := newTestApp(t)
	ghost := &model.User{ID: 4242}
	rec := app.do(t, http.MethodGet, "/", nil, app.cookieFor(t, ghost))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if c := sessionCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("stale cookie not cleared: %+v", c)
	}
}
