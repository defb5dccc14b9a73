package query

import (
	"testing"

	"github.com/asaidimu/go-scoss/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryBuilder(t *testing.T) {
	qb := NewQueryBuilder()
	assert.NotNil(t, qb)
	assert.Nil(t, qb.query.Filters)
	assert.Empty(t, qb.query.Aggregations)
	assert.Equal(t, QueryDSL{}, qb.Build())
	assert.Equal(t, "EMPTY QUERY", qb.String())
}

func TestQueryBuilder_Where(t *testing.T) {
	t.Run("single condition", func(t *testing.T) {
		dsl := NewQueryBuilder().Where("Service ID").Eq("A").Build()
		require.NotNil(t, dsl.Filters)
		require.NotNil(t, dsl.Filters.Condition)
		assert.Equal(t, "Service ID", dsl.Filters.Condition.Field)
		assert.Equal(t, ComparisonOperatorEq, dsl.Filters.Condition.Operator)
		assert.Equal(t, "A", dsl.Filters.Condition.Value)
	})

	t.Run("successive conditions are combined with AND", func(t *testing.T) {
		dsl := NewQueryBuilder().
			Where("Service ID").Eq("A").
			Where("Funder Continent").Eq("Europe").
			Filter(Exact("Funder Country", "NL")).
			Build()
		require.NotNil(t, dsl.Filters.Group)
		assert.Equal(t, schema.LogicalAnd, dsl.Filters.Group.Operator)
		assert.Len(t, dsl.Filters.Group.Conditions, 3)
	})

	t.Run("nested groups", func(t *testing.T) {
		dsl := NewQueryBuilder().
			WhereGroup(schema.LogicalOr).
			Where("Funder Country").Eq("NL").
			WhereGroup(schema.LogicalAnd).
			Where("Funder Country").Eq("JP").
			Where("Funder Name").Eq("Z").
			EndGroup().
			End().
			Build()
		require.NotNil(t, dsl.Filters.Group)
		assert.Equal(t, schema.LogicalOr, dsl.Filters.Group.Operator)
		require.Len(t, dsl.Filters.Group.Conditions, 2)
		inner := dsl.Filters.Group.Conditions[1].Group
		require.NotNil(t, inner)
		assert.Equal(t, schema.LogicalAnd, inner.Operator)
		assert.Len(t, inner.Conditions, 2)
	})

	t.Run("End closes open nested groups", func(t *testing.T) {
		dsl := NewQueryBuilder().
			WhereGroup(schema.LogicalOr).
			WhereGroup(schema.LogicalAnd).
			Where("Funder Country").Eq("JP").
			End().
			Build()
		require.NotNil(t, dsl.Filters.Group)
		assert.Equal(t, schema.LogicalOr, dsl.Filters.Group.Operator)
		require.Len(t, dsl.Filters.Group.Conditions, 1)
		assert.NotNil(t, dsl.Filters.Group.Conditions[0].Group)
	})
}

func TestQueryBuilder_Aggregations(t *testing.T) {
	qb := NewQueryBuilder().
		Sum("total_committed", "Funding Committed (EUR)").
		Terms("continent", "Funder Continent").
		Sum("total_committed", "Funding Committed (EUR)").
		End().
		Terms("funders", "Funder Name").
		OrderBy(TermsOrderTerm).
		Nested(Sum("total_paid", "Funding Paid (EUR)")).
		End()

	dsl := qb.Build()
	require.Len(t, dsl.Aggregations, 3)
	assert.Equal(t, AggregationTypeSum, dsl.Aggregations[0].Type)
	assert.Equal(t, "continent", dsl.Aggregations[1].Name)
	assert.Len(t, dsl.Aggregations[1].Nested, 1)
	assert.Equal(t, TermsOrderTerm, dsl.Aggregations[2].Order)
	assert.Equal(t, "total_paid", dsl.Aggregations[2].Nested[0].Name)
	assert.NoError(t, qb.Validate(nil))
	assert.Equal(t, "AGGREGATIONS: sum(total_committed), terms(continent), terms(funders)", qb.String())
}

func TestQueryBuilder_Validate(t *testing.T) {
	sc, err := schema.NewSchemaFromColumns("master", []string{"Funder Name"})
	require.NoError(t, err)

	qb := NewQueryBuilder().Sum("total", "Funding Committed (EUR)")
	assert.NoError(t, qb.Validate(nil))
	assert.ErrorIs(t, qb.Validate(sc), ErrInvalidConfiguration)
}

func TestQueryBuilder_Clone(t *testing.T) {
	qb := NewQueryBuilder().
		Where("Service ID").Eq("A").
		Where("Funder Name").Eq("X").
		Terms("funders", "Funder Name").Sum("total", "amount").End()
	cloned := qb.Clone()
	assert.Equal(t, qb.Build(), cloned.Build())

	cloned.Where("Funder Country").Eq("NL")
	cloned.query.Aggregations[0].Nested[0].Name = "changed"

	assert.Len(t, qb.query.Filters.Group.Conditions, 2)
	assert.Len(t, cloned.query.Filters.Group.Conditions, 3)
	assert.Equal(t, "total", qb.query.Aggregations[0].Nested[0].Name)
}

func TestQueryBuilder_Reset(t *testing.T) {
	qb := NewQueryBuilder().Where("a").Eq(1).Sum("s", "a")
	assert.Equal(t, "FILTERS: present | AGGREGATIONS: sum(s)", qb.String())
	qb.Reset()
	assert.Equal(t, QueryDSL{}, qb.Build())
}
