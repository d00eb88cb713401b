// Package identity реализует сервис идентификации — ядро учетного слоя.
//
// Сервис объединяет два варианта хранилища за одним контрактом: вход,
// выход, регистрация, CRUD пользователей, восстановление сессии на старте
// и живые уведомления об изменении сессии. Вариант хранилища выбран
// один раз при конструировании и держится за одним интерфейсным
// значением весь срок жизни процесса.
//
// Машина состояний сессии: anonymous → authenticating → authenticated;
// authenticated → anonymous по выходу или принудительному разлогину.
// Промежуточных персистентных состояний нет: неудачная попытка входа
// никогда не оставляет полуустановленной сессии.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mazylab/appraiser-account/internal/config"
	"github.com/mazylab/appraiser-account/internal/lib/jwt"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Состояния машины сессии.
const (
	StateAnonymous      = "anonymous"
	StateAuthenticating = "authenticating"
	StateAuthenticated  = "authenticated"
)

const usersListCacheKey = "users:list"

// SessionMirror — персистентное зеркало текущей сессии локального режима:
// полная денормализованная копия записи, не ссылка. Обновления
// коллекции-источника сюда не попадают, пока сервис явно не пересинхронизирует.
type SessionMirror interface {
	SaveSession(u *models.User) error
	LoadSession() (*models.User, error)
	ClearSession() error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// EventType — тип внешнего уведомления об изменении состояния аутентификации.
type EventType string

// Внешние события подсистемы аутентификации облачного режима.
const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

// SessionEvent — внешнее уведомление о входе или выходе.
type SessionEvent struct {
	Type  EventType
	Email string
}

// Service — сервис идентификации.
type Service struct {
	store    store.Store
	mirror   SessionMirror // nil в облачном режиме
	cache    Cache         // nil в локальном режиме
	jwtMaker jwt.Maker
	log      *slog.Logger
	cfg      config.Identity
	cloud    bool

	mu          sync.Mutex
	state       string
	current     *models.User
	pendingSelf map[string]time.Time // intent-токены "ожидается само-разлогин после регистрации"
	subscribers map[int]chan *models.User
	nextSubID   int
}

// New создает сервис идентификации поверх выбранного хранилища.
// mirror передается только в локальном режиме, cache — только в облачном.
func New(st store.Store, mirror SessionMirror, cache Cache, maker jwt.Maker, cfg config.Identity, cloud bool, log *slog.Logger) *Service {
	return &Service{
		store:       st,
		mirror:      mirror,
		cache:       cache,
		jwtMaker:    maker,
		log:         log,
		cfg:         cfg,
		cloud:       cloud,
		state:       StateAnonymous,
		pendingSelf: make(map[string]time.Time),
		subscribers: make(map[int]chan *models.User),
	}
}

// CurrentUser возвращает копию записи текущей сессии либо nil.
func (s *Service) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// State возвращает текущее состояние машины сессии.
func (s *Service) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe регистрирует подписчика на изменения сессии и возвращает
// канал снимков (nil — анонимное состояние) вместе с функцией отписки,
// которую нужно вызвать ровно один раз при завершении.
func (s *Service) Subscribe() (<-chan *models.User, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan *models.User, 8)
	s.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
	return ch, unsubscribe
}

// notifyLocked рассылает снимок сессии подписчикам. Вызывается под мьютексом.
// Медленный подписчик теряет промежуточные снимки, но не блокирует сервис.
func (s *Service) notifyLocked() {
	var snapshot *models.User
	if s.current != nil {
		u := *s.current
		snapshot = &u
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *Service) setSession(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = u
	if u != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateAnonymous
	}
	s.notifyLocked()
}

type authResult struct {
	user *models.User
	err  error
}

// Login проверяет учетные данные и устанавливает сессию.
//
// Перед попыткой входа устаревшая серверная сессия чистится неблокирующе:
// её сбой не задерживает новую попытку. Сама попытка гонится с таймером;
// проигравшая операция не отменяется, а бросается — её результат
// отбрасывается. Неудача любого рода оставляет прежнюю сессию нетронутой.
func (s *Service) Login(ctx context.Context, email, pass string) (*models.User, string, error) {
	const op = "identity.Login"

	s.mu.Lock()
	prevState := s.state
	s.state = StateAuthenticating
	s.mu.Unlock()

	restoreState := func() {
		s.mu.Lock()
		s.state = prevState
		s.mu.Unlock()
	}

	go func() {
		if err := s.store.SignOut(context.Background(), email); err != nil {
			s.log.Warn("pre-login cleanup failed", sl.Err(err))
		}
	}()

	ch := make(chan authResult, 1)
	go func() {
		u, err := s.authenticate(context.Background(), email, pass)
		ch <- authResult{user: u, err: err}
	}()

	timer := time.NewTimer(s.cfg.LoginTimeout)
	defer timer.Stop()

	var res authResult
	select {
	case res = <-ch:
	case <-timer.C:
		restoreState()
		return nil, "", fmt.Errorf("%s: %w", op, store.ErrTimeout)
	case <-ctx.Done():
		restoreState()
		return nil, "", fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if res.err != nil {
		restoreState()
		return nil, "", res.err
	}

	token, err := s.jwtMaker.GenerateToken(res.user.Email, res.user.Role)
	if err != nil {
		restoreState()
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	if s.mirror != nil {
		if err := s.mirror.SaveSession(res.user); err != nil {
			s.log.Warn("failed to persist session mirror", sl.Err(err))
		}
	}
	s.setSession(res.user)
	s.log.Info("login success", slog.String("email", res.user.Email))
	return res.user, token, nil
}

// authenticate выполняет собственно проверку учетных данных.
// В локальном режиме пустое хранилище дополнительно принимает
// зарезервированную bootstrap-учётку и создает первого администратора.
func (s *Service) authenticate(ctx context.Context, email, pass string) (*models.User, error) {
	u, err := s.store.Authenticate(ctx, email, pass)
	if err == nil {
		return u, nil
	}
	if !s.cloud && errors.Is(err, store.ErrInvalidCredentials) &&
		email == s.cfg.BootstrapEmail && s.cfg.BootstrapPass != "" && pass == s.cfg.BootstrapPass {
		users, listErr := s.store.ListUsers(ctx)
		if listErr == nil && len(users) == 0 {
			admin := models.User{Email: email, Role: models.RoleAdmin, Name: "Admin"}
			if addErr := s.store.AddUser(ctx, admin, pass); addErr == nil {
				return s.store.Authenticate(ctx, email, pass)
			}
		}
	}
	return nil, err
}

// Logout синхронно очищает сессию; серверный выход — fire-and-forget,
// его сбой только логируется и никогда не всплывает.
func (s *Service) Logout(_ context.Context) {
	current := s.CurrentUser()

	if s.mirror != nil {
		if err := s.mirror.ClearSession(); err != nil {
			s.log.Warn("failed to clear session mirror", sl.Err(err))
		}
	}
	s.setSession(nil)

	if current != nil {
		go func() {
			if err := s.store.SignOut(context.Background(), current.Email); err != nil {
				s.log.Error("backend sign-out failed", sl.Err(err))
			}
		}()
	}
}

// Register создает запись самостоятельной регистрации.
//
// Обязательные поля проверяются до любого обращения к хранилищу.
// В облачном режиме регистрация не должна породить неявную сессию:
// перед вызовом бэкенда ставится короткоживущий intent-токен
// "ожидается само-разлогин после регистрации", который обработчик
// событий сессии потребляет ровно один раз.
func (s *Service) Register(ctx context.Context, details models.RegisterDetails) (*models.User, error) {
	const op = "identity.Register"

	if strings.TrimSpace(details.Name) == "" || strings.TrimSpace(details.Phone) == "" {
		return nil, fmt.Errorf("%s: %w", op, store.ErrMissingFields)
	}

	if s.cloud {
		s.armPendingSelfLogout(details.Email)
	}

	u, err := s.store.Register(ctx, details)
	if err != nil {
		if s.cloud {
			s.disarmPendingSelfLogout(details.Email)
		}
		return nil, err
	}

	s.invalidateUsersCache()
	return u, nil
}

func (s *Service) armPendingSelfLogout(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	// Просроченные токены выметаются здесь же: без внешних событий
	// сессии их больше никто не потребит.
	for stale, deadline := range s.pendingSelf {
		if !now.Before(deadline) {
			delete(s.pendingSelf, stale)
		}
	}
	s.pendingSelf[email] = now.Add(10 * time.Second)
}

func (s *Service) disarmPendingSelfLogout(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingSelf, email)
}

// consumePendingSelfLogout атомарно потребляет intent-токен для email.
// Просроченные токены считаются отсутствующими.
func (s *Service) consumePendingSelfLogout(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.pendingSelf[email]
	if !ok {
		return false
	}
	delete(s.pendingSelf, email)
	return time.Now().Before(deadline)
}

// AddUser создает запись административно. Облачный режим отвечает
// отказом на уровне хранилища: административного пути создания там нет.
func (s *Service) AddUser(ctx context.Context, user models.User, pass string) error {
	if err := s.store.AddUser(ctx, user, pass); err != nil {
		return err
	}
	s.invalidateUsersCache()
	return nil
}

// UpdateUser сливает заполненные поля патча в запись. Если запись
// принадлежит текущей сессии, снимок сессии и её зеркало обновляются тоже.
func (s *Service) UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error) {
	updated, err := s.store.UpdateUser(ctx, email, patch)
	if err != nil {
		return nil, err
	}
	s.invalidateUsersCache()

	s.mu.Lock()
	isCurrent := s.current != nil && s.current.Email == email
	s.mu.Unlock()
	if isCurrent {
		if s.mirror != nil {
			if mirrorErr := s.mirror.SaveSession(updated); mirrorErr != nil {
				s.log.Warn("failed to refresh session mirror", sl.Err(mirrorErr))
			}
		}
		u := *updated
		s.setSession(&u)
	}
	return updated, nil
}

// DeleteUser удаляет запись. Удаление текущей авторизованной учетки
// запрещено и отклоняется до обращения к хранилищу.
func (s *Service) DeleteUser(ctx context.Context, email string) error {
	const op = "identity.DeleteUser"

	s.mu.Lock()
	isSelf := s.current != nil && s.current.Email == email
	s.mu.Unlock()
	if isSelf {
		return fmt.Errorf("%s: %w", op, store.ErrSelfDelete)
	}

	if err := s.store.DeleteUser(ctx, email); err != nil {
		return err
	}
	s.invalidateUsersCache()
	return nil
}

// GetUser возвращает запись по email.
func (s *Service) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.store.GetUser(ctx, email)
}

// ListUsers возвращает все записи. В облачном режиме список кэшируется.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	if s.cache != nil {
		var cached []*models.User
		found, err := s.cache.Get(usersListCacheKey, &cached)
		if err != nil {
			s.log.Warn("failed to read users cache", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(usersListCacheKey, users, time.Minute); err != nil {
			s.log.Warn("failed to cache users list", sl.Err(err))
		}
	}
	return users, nil
}

func (s *Service) invalidateUsersCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(usersListCacheKey); err != nil {
		s.log.Warn("failed to invalidate users cache", sl.Err(err))
	}
}

// RestoreSession восстанавливает сессию на старте.
//
// Попытка гонится с таймером восстановления: по таймауту или любой
// ошибке сервис стартует анонимным, не блокируя запуск приложения.
// В локальном режиме token игнорируется и читается зеркало сессии;
// в облачном token разбирается, профиль читается из хранилища, а при
// его отсутствии (лаг репликации сразу после регистрации) синтезируется
// минимальная запись: admin только для зарезервированного bootstrap-email.
func (s *Service) RestoreSession(ctx context.Context, token string) *models.User {
	const op = "identity.RestoreSession"

	ch := make(chan authResult, 1)
	go func() {
		u, err := s.restore(context.Background(), token)
		ch <- authResult{user: u, err: err}
	}()

	timer := time.NewTimer(s.cfg.RestoreTimeout)
	defer timer.Stop()

	var res authResult
	select {
	case res = <-ch:
	case <-timer.C:
		s.log.Warn("session restore timed out, starting anonymous",
			slog.String("op", op))
		return nil
	case <-ctx.Done():
		return nil
	}
	if res.err != nil {
		s.log.Warn("session restore failed, starting anonymous",
			slog.String("op", op), sl.Err(res.err))
		return nil
	}
	if res.user == nil {
		return nil
	}

	s.setSession(res.user)
	return s.CurrentUser()
}

func (s *Service) restore(ctx context.Context, token string) (*models.User, error) {
	if !s.cloud {
		if s.mirror == nil {
			return nil, nil
		}
		return s.mirror.LoadSession()
	}

	if token == "" {
		return nil, nil
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, claims.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		return s.synthesize(claims.Email), nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// synthesize собирает минимальную запись для сессии, профиль которой
// еще не реплицировался.
func (s *Service) synthesize(email string) *models.User {
	role := models.RoleGeneral
	if email == s.cfg.BootstrapEmail {
		role = models.RoleAdmin
	}
	return &models.User{Email: email, Role: role}
}

// HandleSessionEvent реагирует на внешние уведомления подсистемы
// аутентификации облачного режима.
//
// Событие входа, порожденное регистрацией, потребляет intent-токен и
// отвечает немедленным fire-and-forget разлогином: путь установления
// сессии остается единственным и явным. Для остальных входов применяется
// короткая выдержка перед чтением профиля — строка профиля создается
// бэкендом асинхронно после создания учетной записи.
func (s *Service) HandleSessionEvent(ctx context.Context, event SessionEvent) {
	const op = "identity.HandleSessionEvent"

	switch event.Type {
	case EventSignedIn:
		if s.consumePendingSelfLogout(event.Email) {
			go func() {
				if err := s.store.SignOut(context.Background(), event.Email); err != nil {
					s.log.Warn("post-signup self sign-out failed", sl.Err(err))
				}
			}()
			return
		}

		select {
		case <-time.After(s.cfg.SettleDelay):
		case <-ctx.Done():
			return
		}

		u, err := s.store.GetUser(ctx, event.Email)
		if errors.Is(err, store.ErrUserNotFound) {
			u = s.synthesize(event.Email)
		} else if err != nil {
			s.log.Error("failed to load profile on sign-in event",
				slog.String("op", op), sl.Err(err))
			return
		}
		s.setSession(u)

	case EventSignedOut:
		s.setSession(nil)
	}
}
