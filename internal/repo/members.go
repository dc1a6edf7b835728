package repo

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/errs"
)

// MemberInput carries the fields of a new member.
type MemberInput struct {
	Name  string
	Email string
	Phone string
}

// MemberPatch carries contact field edits; nil fields are left unchanged.
type MemberPatch struct {
	Name  *string
	Email *string
	Phone *string
}

// CreateMember validates and stores a new member; emails are unique case-insensitively
func (r *Repository) CreateMember(ctx context.Context, in MemberInput) (*db.Member, error) {
	member := &db.Member{
		Name:  strings.TrimSpace(in.Name),
		Email: normalizeEmail(in.Email),
		Phone: strings.TrimSpace(in.Phone),
	}
	if err := validateMember(member); err != nil {
		return nil, err
	}

	err := r.transaction(ctx, func(tx *Repository) error {
		if err := tx.ensureEmailFree(ctx, member.Email, ""); err != nil {
			return err
		}
		return tx.db.WithContext(ctx).Create(member).Error
	})
	if err != nil {
		err = translate(err, nil, emailTaken(member.Email))
		if errs.KindOf(err) == errs.KindInternal {
			r.log.Error("Failed to create member", zap.Error(err))
		}
		return nil, err
	}

	r.log.Info("Member created", zap.String("member_id", member.ID))
	return member, nil
}

// GetMember retrieves a member by id
func (r *Repository) GetMember(ctx context.Context, id string) (*db.Member, error) {
	var member db.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err != nil {
		return nil, translate(err, errs.NotFound("member %s not found", id), nil)
	}
	return &member, nil
}

// ListMembers returns all members in creation order
func (r *Repository) ListMembers(ctx context.Context) ([]db.Member, error) {
	members := []db.Member{}
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&members).Error; err != nil {
		r.log.Error("Failed to list members", zap.Error(err))
		return nil, err
	}
	return members, nil
}

// UpdateMember edits the contact fields of a member
func (r *Repository) UpdateMember(ctx context.Context, id string, patch MemberPatch) (*db.Member, error) {
	var updated *db.Member
	err := r.transaction(ctx, func(tx *Repository) error {
		member, err := tx.GetMember(ctx, id)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			member.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			member.Email = normalizeEmail(*patch.Email)
		}
		if patch.Phone != nil {
			member.Phone = strings.TrimSpace(*patch.Phone)
		}
		if err := validateMember(member); err != nil {
			return err
		}
		if err := tx.ensureEmailFree(ctx, member.Email, member.ID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":  member.Name,
			"email": member.Email,
			"phone": member.Phone,
		}
		if err := tx.db.WithContext(ctx).Model(member).Updates(updates).Error; err != nil {
			return err
		}
		updated = member
		return nil
	})
	if err != nil {
		err = translate(err, nil, emailTaken(deref(patch.Email)))
		if errs.KindOf(err) == errs.KindInternal {
			r.log.Error("Failed to update member", zap.String("member_id", id), zap.Error(err))
		}
		return nil, err
	}

	r.log.Info("Member updated", zap.String("member_id", id))
	return updated, nil
}

func (r *Repository) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	query := r.db.WithContext(ctx).Model(&db.Member{}).Where("email = ?", email)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return emailTaken(email)
	}
	return nil
}

func validateMember(m *db.Member) error {
	if m.Name == "" {
		return errs.Validation("name is required")
	}
	if m.Email == "" {
		return errs.Validation("email is required")
	}
	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Address != m.Email {
		return errs.Validation("email %q is not a valid address", m.Email)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailTaken(email string) error {
	return errs.Conflict("a member with email %s already exists", normalizeEmail(email))
}
