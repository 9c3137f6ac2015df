package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/Omashka/circles-sub001/internal/models"
)

func init() {
	// Force HTTP/1.1 for WSS connections; the websocket upgrade fails
	// under HTTP/2 ALPN negotiation.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

const surrealSchemaSQL = `
DEFINE TABLE IF NOT EXISTS contact SCHEMALESS;
DEFINE TABLE IF NOT EXISTS interaction SCHEMALESS;
DEFINE INDEX IF NOT EXISTS interaction_contact ON interaction FIELDS contact_id;
DEFINE TABLE IF NOT EXISTS unassigned SCHEMALESS;
`

// SurrealStore is the SurrealDB-backed ContactStore.
type SurrealStore struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger logger.Logger
}

var _ ContactStore = (*SurrealStore)(nil)

// NewSurrealStore connects with an auto-reconnecting WebSocket and
// initializes the schema.
func NewSurrealStore(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*SurrealStore, error) {
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	codec := surrealcbor.New()

	// gorillaws expects the base URL without the /rpc suffix.
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	if _, err := db.SignIn(ctx, surrealdb.Auth{
		Username: cfg.Username,
		Password: cfg.Password,
	}); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	if _, err := surrealdb.Query[any](ctx, db, surrealSchemaSQL, nil); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("init schema: %w", err)
	}

	sdkLogger.Info("contact store connected", "url", cfg.URL)
	return &SurrealStore{conn: conn, db: db, logger: sdkLogger}, nil
}

// Close closes the connection.
func (s *SurrealStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// contactRecord mirrors models.Contact with a SurrealDB record ID.
type contactRecord struct {
	ID              surrealmodels.RecordID `json:"id"`
	Name            string                 `json:"name"`
	WorkInfo        string                 `json:"work_info,omitempty"`
	FamilyDetails   string                 `json:"family_details,omitempty"`
	TravelNotes     string                 `json:"travel_notes,omitempty"`
	Interests       []string               `json:"interests"`
	TopicsToAvoid   []string               `json:"topics_to_avoid"`
	ReligiousEvents []string               `json:"religious_events"`
	Birthday        *string                `json:"birthday,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (r contactRecord) toModel() (models.Contact, error) {
	id, ok := r.ID.ID.(string)
	if !ok {
		return models.Contact{}, fmt.Errorf("unexpected ID type: %T", r.ID.ID)
	}
	c := models.Contact{
		ID:              id,
		Name:            r.Name,
		WorkInfo:        r.WorkInfo,
		FamilyDetails:   r.FamilyDetails,
		TravelNotes:     r.TravelNotes,
		Interests:       r.Interests,
		TopicsToAvoid:   r.TopicsToAvoid,
		ReligiousEvents: r.ReligiousEvents,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Birthday != nil {
		var d models.Date
		if err := d.UnmarshalJSON([]byte(`"` + *r.Birthday + `"`)); err == nil {
			c.Birthday = &d
		}
	}
	return c, nil
}

func contactVars(c models.Contact) map[string]any {
	vars := map[string]any{
		"name":             c.Name,
		"work_info":        c.WorkInfo,
		"family_details":   c.FamilyDetails,
		"travel_notes":     c.TravelNotes,
		"interests":        emptyIfNil(c.Interests),
		"topics_to_avoid":  emptyIfNil(c.TopicsToAvoid),
		"religious_events": emptyIfNil(c.ReligiousEvents),
		"updated_at":       time.Now(),
		"birthday":         nil,
	}
	if c.Birthday != nil {
		vars["birthday"] = c.Birthday.String()
	}
	return vars
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *SurrealStore) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	results, err := surrealdb.Query[[]contactRecord](ctx, s.db,
		"SELECT * FROM contact WHERE id = $id", map[string]any{
			"id": surrealmodels.NewRecordID("contact", id),
		})
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	c, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SurrealStore) ListContacts(ctx context.Context) ([]models.Contact, error) {
	results, err := surrealdb.Query[[]contactRecord](ctx, s.db,
		"SELECT * FROM contact ORDER BY name ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Contact{}, nil
	}
	records := (*results)[0].Result
	contacts := make([]models.Contact, 0, len(records))
	for _, r := range records {
		c, err := r.toModel()
		if err != nil {
			s.logger.Warn("skipping contact with bad record ID", "error", err)
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (s *SurrealStore) SaveContact(ctx context.Context, c models.Contact) error {
	vars := contactVars(c)
	vars["id"] = surrealmodels.NewRecordID("contact", c.ID)
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPSERT $id SET
			name = $name,
			work_info = $work_info,
			family_details = $family_details,
			travel_notes = $travel_notes,
			interests = $interests,
			topics_to_avoid = $topics_to_avoid,
			religious_events = $religious_events,
			birthday = $birthday,
			updated_at = $updated_at,
			created_at = created_at OR time::now()
	`, vars)
	if err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

func (s *SurrealStore) AppendInteraction(ctx context.Context, in models.Interaction) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		CREATE interaction SET
			contact_id = $contact_id,
			summary = $summary,
			raw_input = $raw_input,
			source = $source,
			created_at = time::now()
	`, map[string]any{
		"contact_id": in.ContactID,
		"summary":    in.Summary,
		"raw_input":  in.RawInput,
		"source":     in.Source,
	})
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

type interactionRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	ContactID string                 `json:"contact_id"`
	Summary   string                 `json:"summary"`
	RawInput  string                 `json:"raw_input"`
	Source    string                 `json:"source"`
	CreatedAt time.Time              `json:"created_at"`
}

func (s *SurrealStore) Interactions(ctx context.Context, contactID string) ([]models.Interaction, error) {
	results, err := surrealdb.Query[[]interactionRecord](ctx, s.db,
		"SELECT * FROM interaction WHERE contact_id = $contact_id ORDER BY created_at ASC",
		map[string]any{"contact_id": contactID})
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Interaction{}, nil
	}
	records := (*results)[0].Result
	out := make([]models.Interaction, 0, len(records))
	for _, r := range records {
		id, _ := r.ID.ID.(string)
		out = append(out, models.Interaction{
			ID:        id,
			ContactID: r.ContactID,
			Summary:   r.Summary,
			RawInput:  r.RawInput,
			Source:    r.Source,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *SurrealStore) SaveUnassigned(ctx context.Context, note models.UnassignedNote) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		CREATE unassigned SET
			text = $text,
			summary = $summary,
			source = $source,
			created_at = time::now()
	`, map[string]any{
		"text":    note.Text,
		"summary": note.Summary,
		"source":  note.Source,
	})
	if err != nil {
		return fmt.Errorf("save unassigned note: %w", err)
	}
	return nil
}

type unassignedRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	Text      string                 `json:"text"`
	Summary   string                 `json:"summary"`
	Source    string                 `json:"source"`
	CreatedAt time.Time              `json:"created_at"`
}

func (s *SurrealStore) Unassigned(ctx context.Context) ([]models.UnassignedNote, error) {
	results, err := surrealdb.Query[[]unassignedRecord](ctx, s.db,
		"SELECT * FROM unassigned ORDER BY created_at ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("list unassigned notes: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.UnassignedNote{}, nil
	}
	records := (*results)[0].Result
	out := make([]models.UnassignedNote, 0, len(records))
	for _, r := range records {
		id, _ := r.ID.ID.(string)
		out = append(out, models.UnassignedNote{
			ID:        id,
			Text:      r.Text,
			Summary:   r.Summary,
			Source:    r.Source,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
