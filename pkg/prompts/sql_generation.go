package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// outputDirective describes the only response shape the output parser accepts.
// llm.ParseSQLOutput rejects any key beyond sql_query, explanation and metadata,
// so the schema below must keep additionalProperties false.
const outputDirective = `The output should be formatted as a JSON object that conforms to the JSON schema below.

{"type": "object", "properties": {"sql_query": {"type": "string", "description": "The generated SQL query"}, "explanation": {"type": "string", "description": "Explanation of what the query does"}, "metadata": {"type": ["object", "null"], "description": "Additional metadata about the query"}}, "required": ["sql_query", "explanation"], "additionalProperties": false}

Respond with the JSON object only. Do not wrap it in markdown or add any other text.`

// PromptInput is everything a generation prompt is built from.
type PromptInput struct {
	Question string
	Kind     string
	Snapshot *models.SchemaSnapshot
	UseCases []models.UseCase
}

// AssembledPrompt is a rendered prompt plus how many use cases fit the budget.
type AssembledPrompt struct {
	Text             string
	UseCasesIncluded int
	UseCasesDropped  int
}

// SQLPromptAssembler renders generation prompts. Output is a pure function of
// the input, so identical inputs give byte-identical prompts.
type SQLPromptAssembler struct {
	maxBytes int
}

// NewSQLPromptAssembler creates an assembler. maxBytes of 0 disables the budget.
func NewSQLPromptAssembler(maxBytes int) *SQLPromptAssembler {
	return &SQLPromptAssembler{maxBytes: maxBytes}
}

// Assemble renders the prompt text.
func (a *SQLPromptAssembler) Assemble(in PromptInput) (string, error) {
	p, err := a.AssembleDetailed(in)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// AssembleDetailed renders the prompt, dropping use cases from the end until
// it fits the budget. The schema is never cut; if it alone is over budget
// ErrPromptTooLarge is returned.
func (a *SQLPromptAssembler) AssembleDetailed(in PromptInput) (*AssembledPrompt, error) {
	if in.Snapshot == nil {
		return nil, fmt.Errorf("schema snapshot is required")
	}

	dialect := DialectFor(in.Kind)
	schema := renderSchema(in.Snapshot)

	for n := len(in.UseCases); n >= 0; n-- {
		text := render(dialect, schema, in.UseCases[:n], in.Question)
		if a.maxBytes <= 0 || len(text) <= a.maxBytes {
			return &AssembledPrompt{
				Text:             text,
				UseCasesIncluded: n,
				UseCasesDropped:  len(in.UseCases) - n,
			}, nil
		}
	}

	minimal := render(dialect, schema, nil, in.Question)
	return nil, fmt.Errorf("%w: %d bytes without use cases, budget is %d",
		apperrors.ErrPromptTooLarge, len(minimal), a.maxBytes)
}

func render(dialect Dialect, schema string, useCases []models.UseCase, question string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("You are a %s SQL expert that converts natural language questions into SQL queries.\n\n", dialect.Name))

	prompt.WriteString("Schema Information:\n")
	prompt.WriteString(schema)
	prompt.WriteString("\n\n")

	if len(useCases) > 0 {
		prompt.WriteString(renderUseCases(useCases))
		prompt.WriteString("\n\n")
	}

	prompt.WriteString(fmt.Sprintf("Question: %s\n\n", question))

	prompt.WriteString(fmt.Sprintf("Generate a %s SQL query that answers this question. Follow these rules:\n", dialect.Name))
	for i, rule := range dialect.Rules {
		prompt.WriteString(fmt.Sprintf("%d. %s\n", i+1, rule))
	}
	prompt.WriteString("\n")

	prompt.WriteString(outputDirective)
	return prompt.String()
}

// renderSchema lists datasets, tables and columns in snapshot order, followed
// by relationships when the warehouse reported any.
func renderSchema(s *models.SchemaSnapshot) string {
	blocks := make([]string, 0, len(s.Datasets)+1)

	for _, ds := range s.Datasets {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("Dataset: %s\nTables:", ds.Name))
		for _, table := range ds.Tables {
			cols := make([]string, len(table.Columns))
			for i, col := range table.Columns {
				cols[i] = fmt.Sprintf("%s (%s)", col.Name, col.Type)
			}
			b.WriteString(fmt.Sprintf("\n  - %s\n    Columns: %s", table.Name, strings.Join(cols, ", ")))
		}
		blocks = append(blocks, b.String())
	}

	if len(s.Relationships) > 0 {
		var b strings.Builder
		b.WriteString("Relationships:")
		for _, rel := range s.Relationships {
			b.WriteString(fmt.Sprintf("\n  - %s.%s.%s -> %s.%s.%s",
				rel.FromDataset, rel.FromTable, rel.FromColumn,
				rel.ToDataset, rel.ToTable, rel.ToColumn))
		}
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n")
}

func renderUseCases(useCases []models.UseCase) string {
	var b strings.Builder
	b.WriteString("Use Cases:")
	for _, uc := range useCases {
		b.WriteString(fmt.Sprintf("\n- Question: %s\n  Query: %s", uc.NaturalLanguageExample, uc.ExampleQuery))
	}
	return b.String()
}
