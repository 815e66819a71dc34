package ingest

import (
	"slices"
	"strings"

	"github.com/hazyhaar/obras/record"
)

// Schema maps the labels found in exported sheets to canonical field names
// for one record kind.
type Schema struct {
	Kind string

	// Required are the header labels that identify the header row.
	Required []string

	// Aliases maps an upper-cased label to its canonical field. Several
	// labels may share a field; the first column wins.
	Aliases map[string]string

	// Overrides are secondary labels whose non-blank values replace the
	// target field, the last such column winning.
	Overrides map[string]string
}

// ScheduleSchema covers every spelling seen in schedule sheets.
var ScheduleSchema = Schema{
	Kind:     "schedule",
	Required: DefaultRequired,
	Aliases: map[string]string{
		"ID":          "id",
		"DATA":        "data",
		"PERÍODO":     "periodo",
		"PERIODO":     "periodo",
		"TIPO":        "tipo",
		"EQUIPE":      "equipe",
		"ENCARREGADO": "encarregado",
		"SUPERVISOR":  "supervisor",
		"COM LV":      "com_lv",
		"SI/NR":       "si_inc",
		"SI/INC":      "si_inc",
		"PEP":         "pep",
		"NOTA":        "nota",
		"LOCAL":       "local",
		"STATUS":      "status",
		"CONDIÇÃO":    "condicao",
		"CONDICAO":    "condicao",
		"OBSERVAÇÃO":  "obs",
		"OBSERVACAO":  "obs",
	},
}

// CompletedSchema covers the completed-works sheet.
var CompletedSchema = Schema{
	Kind:     "completed",
	Required: []string{"BASE", "OBRA"},
	Aliases: map[string]string{
		"BASE":      "base",
		"OBRA":      "obra",
		"STATUS":    "status",
		"QTD PROG":  "qtd_prog",
		"QTD. PROG": "qtd_prog",
		"INIC":      "inic",
		"INÍCIO":    "inic",
		"INICIO":    "inic",
		"CONC":      "conc",
		"CONCLUSÃO": "conc",
		"CONCLUSAO": "conc",
		"INIC SEM":  "inic_sem",
		"CONC SEM":  "conc_sem",
		"PROG":      "prog",
		"AND":       "andamento",
		"ANDAMENTO": "andamento",
		"VALOR":     "valor",
		"VIZITA":    "vizita",
		"VISITA":    "vizita",
	},
	Overrides: map[string]string{
		"SITUAÇÃO": "status",
		"SITUACAO": "status",
	},
}

// Normalize drops fully empty and unmapped columns and renames the rest to
// canonical fields. Row positions are preserved.
func (s Schema) Normalize(t *Table) *Table {
	keep := nonEmptyColumns(t.Rows, 0)

	var (
		fields    []string
		sources   []int
		position  = map[string]int{}
		overrides []override
	)
	for _, c := range keep {
		label := normLabel(cell(t.Columns, c))
		if field, ok := s.Aliases[label]; ok {
			if _, dup := position[field]; !dup {
				position[field] = len(fields)
				fields = append(fields, field)
				sources = append(sources, c)
			}
			continue
		}
		if field, ok := s.Overrides[label]; ok {
			overrides = append(overrides, override{field: field, source: c})
		}
	}
	for _, o := range overrides {
		if _, ok := position[o.field]; !ok {
			position[o.field] = len(fields)
			fields = append(fields, o.field)
			sources = append(sources, -1)
		}
	}

	out := &Table{Columns: fields, Rows: make([][]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		cells := make([]string, len(fields))
		for j, c := range sources {
			cells[j] = strings.TrimSpace(cell(row, c))
		}
		for _, o := range overrides {
			if v := strings.TrimSpace(cell(row, o.source)); !record.Blank(v) {
				cells[position[o.field]] = v
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

type override struct {
	field  string
	source int
}

// Has reports whether the normalised table carries field.
func (t *Table) Has(field string) bool {
	return slices.Contains(t.Columns, field)
}
