// Package firestore provides the Firestore persistence collaborator. Records
// and day metadata live under a per-user document, mirroring the layout the
// mobile app syncs against. The engine only sees the service interfaces.
package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
)

// Store implements service.Store on Firestore.
type Store struct {
	client *firestore.Client
	userID string
}

// NewStore connects to the project's Firestore database. credentialsFile may
// be empty when ambient credentials are available.
func NewStore(ctx context.Context, projectID, credentialsFile, userID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: firestore project ID", common.ErrMissingConfig)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: firestore user ID", common.ErrMissingConfig)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &Store{client: client, userID: userID}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) records() *firestore.CollectionRef {
	return s.client.Collection("users").Doc(s.userID).Collection("records")
}

func (s *Store) days() *firestore.CollectionRef {
	return s.client.Collection("users").Doc(s.userID).Collection("day_metadata")
}

// recordDoc is the Firestore wire shape of a record.
type recordDoc struct {
	ID               string    `firestore:"id"`
	TimestampMS      int64     `firestore:"timestamp_ms"`
	Mode             string    `firestore:"mode"`
	Amount           int       `firestore:"amount"`
	Toll             int       `firestore:"toll"`
	ReturnToll       int       `firestore:"return_toll"`
	NonCashAmount    int       `firestore:"non_cash_amount"`
	PaymentMethod    string    `firestore:"payment_method"`
	RideType         string    `firestore:"ride_type"`
	PickupLocation   string    `firestore:"pickup_location"`
	DropoffLocation  string    `firestore:"dropoff_location"`
	PickupCoords     []float64 `firestore:"pickup_coords"`
	DropoffCoords    []float64 `firestore:"dropoff_coords"`
	PassengersMale   int       `firestore:"passengers_male"`
	PassengersFemale int       `firestore:"passengers_female"`
	Remarks          string    `firestore:"remarks"`
	IsBadCustomer    bool      `firestore:"is_bad_customer"`
	RideCount        int       `firestore:"ride_count"`
	WorkMinutes      int       `firestore:"work_minutes"`
	StartClock       string    `firestore:"start_clock"`
	EndClock         string    `firestore:"end_clock"`
	Note             string    `firestore:"note"`
}

// SaveRecords inserts or replaces records by ID.
func (s *Store) SaveRecords(ctx context.Context, records []model.Record) error {
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return fmt.Errorf("record at index %d: missing ID", i)
		}
		if _, err := s.records().Doc(rec.ID).Set(ctx, toDoc(rec)); err != nil {
			return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// GetRecordByID returns the record with the given ID.
func (s *Store) GetRecordByID(ctx context.Context, id string) (*model.Record, error) {
	snap, err := s.records().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", id, err)
	}
	rec := fromDoc(&doc)
	return &rec, nil
}

// GetRecordsByRange returns records with timestamps in [from, to), ascending.
func (s *Store) GetRecordsByRange(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	iter := s.records().
		Where("timestamp_ms", ">=", from.UnixMilli()).
		Where("timestamp_ms", "<", to.UnixMilli()).
		OrderBy("timestamp_ms", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []model.Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate records: %w", err)
		}

		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse record %s: %w", snap.Ref.ID, err)
		}
		records = append(records, fromDoc(&doc))
	}
	return records, nil
}

// DeleteRecords permanently removes the records with the given IDs.
func (s *Store) DeleteRecords(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.records().Doc(id).Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
	}
	return nil
}

// dayDoc is the Firestore wire shape of day metadata.
type dayDoc struct {
	Date            string    `firestore:"date"`
	Memo            string    `firestore:"memo"`
	AttributedMonth string    `firestore:"attributed_month"`
	RestMinutes     int       `firestore:"rest_minutes"`
	StartOdometer   int       `firestore:"start_odometer"`
	EndOdometer     int       `firestore:"end_odometer"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

// SaveDayMetadata inserts or replaces the metadata for its date.
func (s *Store) SaveDayMetadata(ctx context.Context, meta *model.DayMetadata) error {
	doc := dayDoc{
		Date:            meta.Date,
		Memo:            meta.Memo,
		AttributedMonth: meta.AttributedMonth,
		RestMinutes:     meta.RestMinutes,
		StartOdometer:   meta.StartOdometer,
		EndOdometer:     meta.EndOdometer,
		UpdatedAt:       meta.UpdatedAt,
	}
	if _, err := s.days().Doc(dayDocID(meta.Date)).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to save day metadata for %s: %w", meta.Date, err)
	}
	return nil
}

// GetDayMetadata returns the metadata for a business date.
func (s *Store) GetDayMetadata(ctx context.Context, date string) (*model.DayMetadata, error) {
	snap, err := s.days().Doc(dayDocID(date)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("day metadata %s: %w", date, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day metadata: %w", err)
	}

	var doc dayDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse day metadata %s: %w", date, err)
	}
	return &model.DayMetadata{
		Date:            doc.Date,
		Memo:            doc.Memo,
		AttributedMonth: doc.AttributedMonth,
		RestMinutes:     doc.RestMinutes,
		StartOdometer:   doc.StartOdometer,
		EndOdometer:     doc.EndOdometer,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

// dayDocID flattens a "2006/01/02" date key into a legal document ID.
func dayDocID(date string) string {
	return strings.ReplaceAll(date, "/", "-")
}

func toDoc(rec *model.Record) recordDoc {
	doc := recordDoc{
		ID:               rec.ID,
		TimestampMS:      rec.Timestamp.UnixMilli(),
		Mode:             string(rec.Mode),
		Amount:           rec.Amount,
		Toll:             rec.Toll,
		ReturnToll:       rec.ReturnToll,
		NonCashAmount:    rec.NonCashAmount,
		PaymentMethod:    string(rec.PaymentMethod),
		RideType:         string(rec.RideType),
		PickupLocation:   rec.PickupLocation,
		DropoffLocation:  rec.DropoffLocation,
		PassengersMale:   rec.PassengersMale,
		PassengersFemale: rec.PassengersFemale,
		Remarks:          rec.Remarks,
		IsBadCustomer:    rec.IsBadCustomer,
		RideCount:        rec.RideCount,
		WorkMinutes:      rec.WorkMinutes,
		StartClock:       rec.StartClock,
		EndClock:         rec.EndClock,
		Note:             rec.Note,
	}
	if rec.PickupCoords != nil {
		doc.PickupCoords = []float64{rec.PickupCoords.Latitude, rec.PickupCoords.Longitude}
	}
	if rec.DropoffCoords != nil {
		doc.DropoffCoords = []float64{rec.DropoffCoords.Latitude, rec.DropoffCoords.Longitude}
	}
	return doc
}

func fromDoc(doc *recordDoc) model.Record {
	rec := model.Record{
		ID:               doc.ID,
		Timestamp:        time.UnixMilli(doc.TimestampMS),
		Mode:             model.RecordMode(doc.Mode),
		Amount:           doc.Amount,
		Toll:             doc.Toll,
		ReturnToll:       doc.ReturnToll,
		NonCashAmount:    doc.NonCashAmount,
		PaymentMethod:    model.PaymentMethod(doc.PaymentMethod),
		RideType:         model.RideType(doc.RideType),
		PickupLocation:   doc.PickupLocation,
		DropoffLocation:  doc.DropoffLocation,
		PassengersMale:   doc.PassengersMale,
		PassengersFemale: doc.PassengersFemale,
		Remarks:          doc.Remarks,
		IsBadCustomer:    doc.IsBadCustomer,
		RideCount:        doc.RideCount,
		WorkMinutes:      doc.WorkMinutes,
		StartClock:       doc.StartClock,
		EndClock:         doc.EndClock,
		Note:             doc.Note,
	}
	if len(doc.PickupCoords) == 2 {
		rec.PickupCoords = &model.Coordinates{Latitude: doc.PickupCoords[0], Longitude: doc.PickupCoords[1]}
	}
	if len(doc.DropoffCoords) == 2 {
		rec.DropoffCoords = &model.Coordinates{Latitude: doc.DropoffCoords[0], Longitude: doc.DropoffCoords[1]}
	}
	return rec
}
