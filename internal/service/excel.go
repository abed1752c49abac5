package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/xuri/excelize/v2"
)

const sheetName = "PERT"

var excelHeaders = []string{
	"Issue", "Título", "Estado",
	"Otimista", "Mais provável", "Pessimista",
	"Tempo esperado", "Desvio padrão", "Variância",
	"68% mín", "68% máx", "95% mín", "95% máx", "99,7% mín", "99,7% máx",
	"Validação",
}

// ExcelExporter gera o relatório PERT de um projeto em XLSX
type ExcelExporter struct{}

// NewExcelExporter cria um novo exportador
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// Export gera a planilha com uma linha por tarefa e a linha de totais
func (g *ExcelExporter) Export(project *model.ProjectPert, projectName string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return nil, fmt.Errorf("renomear sheet: %w", err)
	}

	if err := f.SetDocProps(&excelize.DocProperties{Title: "PERT - " + projectName}); err != nil {
		return nil, fmt.Errorf("propriedades: %w", err)
	}

	if err := g.writeHeaders(f); err != nil {
		return nil, fmt.Errorf("escrever headers: %w", err)
	}

	if err := g.writeTasks(f, project.Tasks); err != nil {
		return nil, fmt.Errorf("escrever tarefas: %w", err)
	}

	if err := g.writeTotals(f, len(project.Tasks)+2, project.Total); err != nil {
		return nil, fmt.Errorf("escrever totais: %w", err)
	}

	if err := g.fitColumns(f); err != nil {
		return nil, fmt.Errorf("ajustar colunas: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("escrever buffer: %w", err)
	}

	return buf, nil
}

// writeHeaders escreve os cabeçalhos no Excel
func (g *ExcelExporter) writeHeaders(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	cells := make([]interface{}, len(excelHeaders))
	for i, h := range excelHeaders {
		cells[i] = h
	}

	if err := f.SetSheetRow(sheetName, "A1", &cells); err != nil {
		return err
	}

	last, _ := excelize.CoordinatesToCellName(len(excelHeaders), 1)
	return f.SetCellStyle(sheetName, "A1", last, style)
}

// writeTasks escreve uma linha por tarefa; tarefas sem estimativa ficam com colunas vazias
func (g *ExcelExporter) writeTasks(f *excelize.File, tasks []model.TaskPert) error {
	invalidStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "C00000"},
	})
	if err != nil {
		return err
	}

	for i, task := range tasks {
		row := i + 2 // Linha 1 é header
		cells := []interface{}{task.Issue.Identifier, task.Issue.Title, task.Issue.State}

		if task.Estimate != nil {
			cells = append(cells, task.Estimate.Optimistic, task.Estimate.MostLikely, task.Estimate.Pessimistic)
		} else {
			cells = append(cells, nil, nil, nil)
		}

		if task.Result != nil {
			cells = append(cells, resultCells(*task.Result)...)
		} else {
			cells = append(cells, make([]interface{}, 9)...)
		}

		status := ""
		if task.Validation != nil {
			status = "OK"
			if !task.Validation.Valid {
				status = strings.Join(task.Validation.Errors, "; ")
			}
		}
		cells = append(cells, status)

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return err
		}

		if task.Validation != nil && !task.Validation.Valid {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(excelHeaders), row)
			if err := f.SetCellStyle(sheetName, first, last, invalidStyle); err != nil {
				return err
			}
		}
	}

	return nil
}

// writeTotals escreve o agregado do projeto
func (g *ExcelExporter) writeTotals(f *excelize.File, row int, total pert.Result) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "top", Color: "000000", Style: 2},
		},
	})
	if err != nil {
		return err
	}

	cells := []interface{}{"TOTAL", "", "", nil, nil, nil}
	cells = append(cells, resultCells(total)...)

	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return err
	}

	last, _ := excelize.CoordinatesToCellName(len(excelHeaders), row)
	return f.SetCellStyle(sheetName, cell, last, style)
}

// fitColumns ajusta a largura das colunas
func (g *ExcelExporter) fitColumns(f *excelize.File) error {
	if err := f.SetColWidth(sheetName, "B", "B", 50); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(excelHeaders))
	if err := f.SetColWidth(sheetName, "C", last, 14); err != nil {
		return err
	}
	return f.SetColWidth(sheetName, last, last, 60)
}

func resultCells(r pert.Result) []interface{} {
	ci := r.ConfidenceIntervals
	return []interface{}{
		r.ExpectedTime, r.StandardDeviation, r.Variance,
		ci.OneStdDev.Lower, ci.OneStdDev.Upper,
		ci.TwoStdDev.Lower, ci.TwoStdDev.Upper,
		ci.ThreeStdDev.Lower, ci.ThreeStdDev.Upper,
	}
}
