package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// storefrontConstraints names the schema rules whose violations surface in logs.
var storefrontConstraints = map[string]struct {
	rule string
	code Code
}{
	"appointments_no_overlap":      {"appointment_overlap", CodeSlotUnavailable},
	"appointments_range_check":     {"appointment_range", CodeInvalidRange},
	"ux_addresses_user_default":    {"single_default_address", CodeConflict},
	"ux_users_email":               {"unique_user_email", CodeConflict},
	"products_slug_key":            {"unique_product_slug", CodeConflict},
	"carts_user_id_key":            {"one_cart_per_user", CodeConflict},
	"cart_items_line_key":          {"unique_cart_line", CodeConflict},
	"ux_orders_payment_intent_ref": {"unique_payment_intent", CodeConflict},
}

// ConstraintCode maps a schema constraint to the error code its violation
// means to callers.
func ConstraintCode(constraint string) (Code, bool) {
	c, ok := storefrontConstraints[constraint]
	return c.code, ok
}

// ErrorDump is the log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string    `json:"top_message"`
	Code       Code      `json:"code,omitempty"`
	Chain      []string  `json:"chain,omitempty"`
	Postgres   *PGFields `json:"postgres,omitempty"`
	// Rule is the storefront rule behind a known constraint violation.
	Rule string `json:"rule,omitempty"`
}

// PGFields are the driver-neutral parts of a Postgres error.
type PGFields struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := postgresFields(err); ok {
		d.Postgres = pg
		if c, known := storefrontConstraints[pg.Constraint]; known {
			d.Rule = c.rule
		}
	}
	return d
}

// Fields flattens the dump into log fields, leaving out what is empty.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.Rule != "" {
		fields["violated_rule"] = d.Rule
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		for key, value := range map[string]string{
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

// postgresFields reads pgx errors (gorm's postgres driver) and lib/pq errors
// (array scanning paths) alike.
func postgresFields(err error) (*PGFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return nil, false
}
