package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pribylovaa/hrm-auth/internal/models"
)

type runner func(fn func(ctx context.Context, b *backend, out io.Writer) error) func(*cobra.Command, []string) error

func newMigrateCommand(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, b *backend, out io.Writer) error {
			if b.migrate == nil {
				return errors.New("migrations are not supported by this backend")
			}
			if err := b.migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "migrations applied")
			return nil
		}),
	}
}

func newCreateMemberCommand(with runner) *cobra.Command {
	var in models.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-member",
		Short: "Register a member with the same validation as the public API",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, b *backend, out io.Writer) error {
			m, err := b.svc.Register(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "member created: id=%s email=%s role=%s\n", m.ID, m.Email, m.Role)
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "member e-mail")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Role, "role", "", "role (default: member)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRevokeMemberCommand(with runner) *cobra.Command {
	var member string

	cmd := &cobra.Command{
		Use:   "revoke-member",
		Short: "Revoke every refresh token of a member (sign out everywhere)",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, b *backend, out io.Writer) error {
			id, err := resolveMember(ctx, b, member)
			if err != nil {
				return err
			}
			if err := b.svc.LogoutAll(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "sessions revoked: member=%s\n", id)
			return nil
		}),
	}

	cmd.Flags().StringVar(&member, "member", "", "member id or e-mail")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

// newSetActiveCommand строит activate/deactivate. Деактивация отзывает все сессии.
func newSetActiveCommand(with runner, active bool) *cobra.Command {
	var member string

	use, short := "deactivate", "Block a member and revoke all sessions"
	if active {
		use, short = "activate", "Unblock a member"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, b *backend, out io.Writer) error {
			id, err := resolveMember(ctx, b, member)
			if err != nil {
				return err
			}
			if err := b.svc.SetMemberActive(ctx, id, active); err != nil {
				return err
			}
			fmt.Fprintf(out, "member %sd: %s\n", use, id)
			return nil
		}),
	}

	cmd.Flags().StringVar(&member, "member", "", "member id or e-mail")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func newCleanupCommand(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, b *backend, out io.Writer) error {
			n, err := b.svc.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "expired tokens deleted: %d\n", n)
			return nil
		}),
	}
}

// resolveMember принимает UUID или e-mail участника.
func resolveMember(ctx context.Context, b *backend, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}

	m, err := b.store.MemberByEmail(ctx, strings.ToLower(strings.TrimSpace(ref)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("member %q: %w", ref, err)
	}

	return m.ID, nil
}
