// Package gqltransport exposes invoice emission over GraphQL.
package gqltransport

import (
	"github.com/graphql-go/graphql"
)

// Input fields are nullable so that missing values reach request validation
// and fail with its messages rather than with a schema error.
var lineItemInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "LineItemInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"name":      &graphql.InputObjectFieldConfig{Type: graphql.String},
		"unitPrice": &graphql.InputObjectFieldConfig{Type: graphql.Float},
		"quantity":  &graphql.InputObjectFieldConfig{Type: graphql.Int},
	},
})

var issueInvoiceInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "IssueInvoiceInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"legalName":   &graphql.InputObjectFieldConfig{Type: graphql.String},
		"taxId":       &graphql.InputObjectFieldConfig{Type: graphql.String},
		"email":       &graphql.InputObjectFieldConfig{Type: graphql.String},
		"phoneNumber": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"lineItems":   &graphql.InputObjectFieldConfig{Type: graphql.NewList(lineItemInput)},
	},
})

var customerType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Customer",
	Fields: graphql.Fields{
		"name":  &graphql.Field{Type: graphql.String},
		"taxId": &graphql.Field{Type: graphql.String},
		"email": &graphql.Field{Type: graphql.String},
	},
})

var lineItemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LineItem",
	Fields: graphql.Fields{
		"name":      &graphql.Field{Type: graphql.String},
		"unitPrice": &graphql.Field{Type: graphql.Float},
		"quantity":  &graphql.Field{Type: graphql.Int},
		"subtotal":  &graphql.Field{Type: graphql.Float},
	},
})

var stepType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Step",
	Description: "Outcome of one emission step.",
	Fields: graphql.Fields{
		"name":       &graphql.Field{Type: graphql.String},
		"status":     &graphql.Field{Type: graphql.String},
		"durationMs": &graphql.Field{Type: graphql.Int},
		"detail":     &graphql.Field{Type: graphql.String},
	},
})

var invoiceType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Invoice",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.ID},
		"customer":  &graphql.Field{Type: customerType},
		"lineItems": &graphql.Field{Type: graphql.NewList(lineItemType)},
		"total":     &graphql.Field{Type: graphql.Float},
		"pdfUrl":    &graphql.Field{Type: graphql.String},
		"xmlUrl":    &graphql.Field{Type: graphql.String},
		"folio":     &graphql.Field{Type: graphql.String},
		"summary":   &graphql.Field{Type: graphql.String},
		"steps":     &graphql.Field{Type: graphql.NewList(stepType)},
	},
})

// NewSchema builds the schema served by r.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type:    graphql.String,
				Resolve: r.health,
			},
			"invoice": &graphql.Field{
				Type: invoiceType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.invoice,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"issueInvoice": &graphql.Field{
				Type: invoiceType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(issueInvoiceInput)},
				},
				Resolve: r.issueInvoice,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}
