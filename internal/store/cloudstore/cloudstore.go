// Package cloudstore реализует облачный вариант хранилища пользователей
// поверх PostgreSQL: подсистему аутентификации (таблица accounts с хэшами
// паролей) и таблицу структурированных записей profiles, ключом которой
// служит непрозрачный идентификатор, назначаемый бэкендом.
//
// Все мутации записей работают в два шага: сначала email разрешается
// в идентификатор бэкенда, затем запись меняется по идентификатору.
// Персистентная форма snake_case транслируется в camelCase доменной
// модели на каждом чтении и записи. Транспортные ошибки оборачиваются
// и возвращаются значениями, не исключениями.
package cloudstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mazylab/appraiser-account/internal/lib/password"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Store инкапсулирует соединение с PostgreSQL и реализует контракт
// хранилища пользователей.
type Store struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(connectionString string) (*Store, error) {
	const op = "cloudstore.New"

	db, err := sql.Open("pgx", connectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{DB: db}, nil
}

// resolveID разрешает email в идентификатор профиля, назначенный бэкендом.
func (s *Store) resolveID(ctx context.Context, email string) (string, error) {
	const op = "cloudstore.resolveID"
	var id string
	query := `SELECT id FROM profiles WHERE email = $1`
	err := s.DB.QueryRowContext(ctx, query, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func scanProfile(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var name, phone sql.NullString
	var expiry sql.NullTime
	if err := row.Scan(&u.Email, &u.Role, &name, &phone, &expiry); err != nil {
		return nil, err
	}
	if name.Valid {
		u.Name = name.String
	}
	if phone.Valid {
		u.Phone = phone.String
	}
	if expiry.Valid {
		t := expiry.Time
		u.SubscriptionExpiry = &t
	}
	return u, nil
}

// Authenticate проверяет учетные данные через подсистему аутентификации
// и возвращает связанную запись профиля.
func (s *Store) Authenticate(ctx context.Context, email, pass string) (*models.User, error) {
	const op = "cloudstore.Authenticate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var hash string
	query := `SELECT password_hash FROM accounts WHERE email = $1`
	err := s.DB.QueryRowContext(ctx, query, email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(hash, pass); err != nil {
		return nil, store.ErrInvalidCredentials
	}

	u, err := s.GetUser(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		// Register создает учетную запись и профиль в одной транзакции;
		// учетка без строки профиля — рассинхронизация данных, вход
		// отклоняется. Синтез минимальной записи есть только на путях
		// восстановления сессии и внешних событий входа.
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SignOut завершает серверную сессию. Сессия облачного режима — это
// подписанный токен на стороне клиента, отзывать на сервере нечего.
func (s *Store) SignOut(_ context.Context, _ string) error {
	return nil
}

// Register создает учетную запись и запись профиля в одной транзакции.
// Роль всегда general: bootstrap-инвариант первого администратора
// действует только в локальном режиме.
func (s *Store) Register(ctx context.Context, details models.RegisterDetails) (*models.User, error) {
	const op = "cloudstore.Register"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	hash, err := password.GetHash(details.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (email, password_hash) VALUES ($1, $2)`,
		details.Email, hash); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrEmailTaken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id := uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, email, role, name, phone) VALUES ($1, $2, $3, $4, $5)`,
		id, details.Email, models.RoleGeneral, details.Name, details.Phone); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrEmailTaken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.User{
		Email: details.Email,
		Role:  models.RoleGeneral,
		Name:  details.Name,
		Phone: details.Phone,
	}, nil
}

// AddUser недоступен: у облачной подсистемы аутентификации нет
// административного пути создания учеток с клиента, режим закрыт наглухо.
func (s *Store) AddUser(_ context.Context, _ models.User, _ string) error {
	return store.ErrNotSupported
}

// UpdateUser разрешает email в идентификатор, сливает патч и возвращает
// обновлённую запись профиля.
func (s *Store) UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error) {
	const op = "cloudstore.UpdateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	id, err := s.resolveID(ctx, email)
	if err != nil {
		return nil, err
	}

	current, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*current)

	query := `UPDATE profiles
			  SET role = $1, name = $2, phone = $3, subscription_expiry = $4
			  WHERE id = $5`
	var expiry sql.NullTime
	if updated.SubscriptionExpiry != nil {
		expiry = sql.NullTime{Time: *updated.SubscriptionExpiry, Valid: true}
	}
	if _, err = s.DB.ExecContext(ctx, query,
		updated.Role, updated.Name, updated.Phone, expiry, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &updated, nil
}

// DeleteUser разрешает email в идентификатор и удаляет запись профиля
// вместе с учетной записью.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	const op = "cloudstore.DeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	id, err := s.resolveID(ctx, email)
	if err != nil {
		return err
	}
	if _, err = s.DB.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = s.DB.ExecContext(ctx, `DELETE FROM accounts WHERE email = $1`, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) getByID(ctx context.Context, id string) (*models.User, error) {
	const op = "cloudstore.getByID"
	query := `SELECT email, role, name, phone, subscription_expiry
			  FROM profiles
			  WHERE id = $1`
	u, err := scanProfile(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает запись профиля по email.
func (s *Store) GetUser(ctx context.Context, email string) (*models.User, error) {
	const op = "cloudstore.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, role, name, phone, subscription_expiry
			  FROM profiles
			  WHERE email = $1`
	u, err := scanProfile(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers возвращает все записи профилей.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "cloudstore.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, role, name, phone, subscription_expiry
			  FROM profiles
			  ORDER BY email`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindExpiringToday находит пользователей, чья подписка истекает сегодня.
// Используется планировщиком уведомлений; ролей не меняет.
func (s *Store) FindExpiringToday(ctx context.Context) ([]*models.User, error) {
	const op = "cloudstore.FindExpiringToday"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, role, name, phone, subscription_expiry
			  FROM profiles
			  WHERE subscription_expiry::DATE = CURRENT_DATE`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
