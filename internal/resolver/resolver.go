// Package resolver decides whether an inbound canonical record creates a
// new student or updates an existing one, and converts activity/class names
// into store references. Updates follow merge-with-existing semantics:
// absent fields never overwrite stored values.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/model"
	"github.com/vivassoc/roster-backend/internal/store"
)

// Action classifies the resolution outcome.
type Action string

const (
	ActionCreate Action = "created"
	ActionUpdate Action = "updated"
)

// Decision is the resolved write plan for one record. Exactly one of
// Student (create) or Patch (update) is meaningful.
type Decision struct {
	Action   Action
	Existing *model.Student
	Student  *model.Student
	Patch    model.StudentPatch
}

// Resolver resolves canonical records against the current roster.
type Resolver struct {
	store     store.Store
	clock     ident.Clock
	createdBy string
	log       zerolog.Logger
}

// New creates a Resolver. createdBy is stamped on records created without
// an explicit actor.
func New(st store.Store, clock ident.Clock, createdBy string, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:     st,
		clock:     clock,
		createdBy: createdBy,
		log:       log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve classifies rec against the roster. Lookup order: active student
// by short ID, then (name, phone) identity, then create.
func (r *Resolver) Resolve(ctx context.Context, rec model.StudentRecord) (*Decision, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return nil, fmt.Errorf("resolve: record has no name")
	}

	activityID, classID, err := r.resolveRefs(ctx, rec)
	if err != nil {
		return nil, err
	}

	existing, err := r.findExisting(ctx, rec, name)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()

	if existing != nil {
		patch := model.StudentPatch{
			Name:             &name,
			Phone:            rec.Phone,
			Address:          rec.Address,
			Email:            rec.Email,
			VoterID:          rec.VoterID,
			BirthDate:        rec.BirthDate,
			EnrolledOn:       rec.EnrolledOn,
			ActivityID:       activityID,
			ClassID:          classID,
			AttendanceStatus: rec.AttendanceStatus,
			Notes:            rec.Notes,
			Active:           rec.Active,
		}
		patch = prunePatch(patch, existing)
		// Only a real change bumps updated_at; re-ingesting an unchanged
		// file leaves stored rows untouched.
		if !patch.IsZero() {
			patch.UpdatedAt = &now
		}
		return &Decision{Action: ActionUpdate, Existing: existing, Patch: patch}, nil
	}

	shortID := ident.ShortID()
	if rec.ShortID != nil && *rec.ShortID != "" {
		shortID = *rec.ShortID
	}
	active := true
	if rec.Active != nil {
		active = *rec.Active
	}
	student := &model.Student{
		ID:               ident.NewID(),
		ShortID:          shortID,
		Name:             name,
		Phone:            rec.Phone,
		Address:          rec.Address,
		Email:            rec.Email,
		VoterID:          rec.VoterID,
		BirthDate:        rec.BirthDate,
		EnrolledOn:       rec.EnrolledOn,
		ActivityID:       activityID,
		ClassID:          classID,
		AttendanceStatus: rec.AttendanceStatus,
		Notes:            rec.Notes,
		Active:           active,
		CreatedAt:        now,
		CreatedBy:        r.createdBy,
		UpdatedAt:        now,
	}
	return &Decision{Action: ActionCreate, Student: student}, nil
}

// prunePatch drops patch fields that match the stored record, so a patch
// built from an unchanged row comes out empty.
func prunePatch(p model.StudentPatch, existing *model.Student) model.StudentPatch {
	if p.Name != nil && *p.Name == existing.Name {
		p.Name = nil
	}
	p.Phone = pruneStr(p.Phone, existing.Phone)
	p.Address = pruneStr(p.Address, existing.Address)
	p.Email = pruneStr(p.Email, existing.Email)
	p.VoterID = pruneStr(p.VoterID, existing.VoterID)
	p.AttendanceStatus = pruneStr(p.AttendanceStatus, existing.AttendanceStatus)
	p.Notes = pruneStr(p.Notes, existing.Notes)
	p.ActivityID = pruneStr(p.ActivityID, existing.ActivityID)
	p.ClassID = pruneStr(p.ClassID, existing.ClassID)
	p.BirthDate = pruneTime(p.BirthDate, existing.BirthDate)
	p.EnrolledOn = pruneTime(p.EnrolledOn, existing.EnrolledOn)
	if p.Active != nil && *p.Active == existing.Active {
		p.Active = nil
	}
	return p
}

func pruneStr(v, stored *string) *string {
	if v != nil && stored != nil && *v == *stored {
		return nil
	}
	return v
}

func pruneTime(v, stored *time.Time) *time.Time {
	if v != nil && stored != nil && v.Equal(*stored) {
		return nil
	}
	return v
}

func (r *Resolver) findExisting(ctx context.Context, rec model.StudentRecord, name string) (*model.Student, error) {
	if rec.ShortID != nil && *rec.ShortID != "" {
		s, err := r.store.FindStudentByShortID(ctx, *rec.ShortID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}

	phone := ""
	if rec.Phone != nil {
		phone = *rec.Phone
	}
	return r.store.FindStudentByIdentity(ctx, name, phone)
}

// resolveRefs converts activity/class names into references. A missing
// activity is created with a synthesised description — the activity
// vocabulary is open-ended. A missing class is NOT created; schedules are
// authored, so the reference stays absent.
func (r *Resolver) resolveRefs(ctx context.Context, rec model.StudentRecord) (activityID, classID *string, err error) {
	if rec.Activity != nil && strings.TrimSpace(*rec.Activity) != "" {
		name := strings.TrimSpace(*rec.Activity)
		activity, err := r.store.FindActivityByName(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		if activity == nil {
			activity = &model.Activity{
				ID:          ident.NewID(),
				Name:        name,
				Description: fmt.Sprintf("Atividade criada automaticamente na importação (%s)", name),
				Active:      true,
				CreatedAt:   r.clock.Now(),
				CreatedBy:   r.createdBy,
			}
			if _, err := r.store.InsertActivity(ctx, activity); err != nil {
				// A concurrent ingestion may have created it between find
				// and insert; re-read before giving up.
				if store.KindOf(err) == store.KindConstraint {
					activity, err = r.store.FindActivityByName(ctx, name)
					if err != nil {
						return nil, nil, err
					}
				} else {
					return nil, nil, err
				}
			}
			r.log.Info().Str("activity", name).Msg("Activity created from import")
		}
		if activity != nil {
			activityID = &activity.ID
		}
	}

	if rec.Class != nil && strings.TrimSpace(*rec.Class) != "" {
		class, err := r.store.FindClassByName(ctx, strings.TrimSpace(*rec.Class))
		if err != nil {
			return nil, nil, err
		}
		if class != nil {
			classID = &class.ID
		}
	}

	return activityID, classID, nil
}
