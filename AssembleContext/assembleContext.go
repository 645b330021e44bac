package AssembleContext

import (
	"bytes"
	"encoding/csv"
	"image"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"slack-image-reviewer/Models"
)

type ExampleRecord = Models.ExampleRecord

// ExampleSampleSize is how many reference examples one review is grounded
// in, at most. Smaller tables just yield every row.
const ExampleSampleSize = 5

const (
	filenameColumn    = "image_filename"
	performanceColumn = "performance_info"
)

// LoadExamples reads the reference dataset and returns a uniform random
// sample of up to sampleSize fully loaded example records.
//
// This fails closed: a missing dataset, missing columns or a missing image
// directory all yield an empty slice (logged), never an error — a review
// with no comparative context is still a review. A single unreadable or
// undecodable image only skips that record.
func LoadExamples(csvPath string, imageDir string, sampleSize int) []ExampleRecord {

	rows := readReferenceTable(csvPath)
	if len(rows) == 0 {
		return nil
	}

	if _, statError := os.Stat(imageDir); statError != nil {
		log.Printf("AssembleContext:LoadExamples#image directory %s not readable: %s", imageDir, statError.Error())
		return nil
	}

	// uniform sample without replacement: shuffle the row indices and take
	// the first min(sampleSize, len(rows))
	indices := rand.Perm(len(rows))
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}

	var examples []ExampleRecord
	for _, rowIndex := range indices[:sampleSize] {
		row := rows[rowIndex]

		imageBytes, readError := os.ReadFile(filepath.Join(imageDir, row.Filename))
		if readError != nil {
			log.Printf("AssembleContext:LoadExamples#skipping example %s: %s", row.Filename, readError.Error())
			continue
		}

		// the mime type comes from the actual bytes, not the file
		// extension, so what we declare to the model always matches
		// what we send
		mimeType := sniffImageMimeType(imageBytes)
		if mimeType == "" {
			log.Printf("AssembleContext:LoadExamples#skipping example %s: not a decodable image", row.Filename)
			continue
		}

		row.ImageBytes = imageBytes
		row.MimeType = mimeType
		examples = append(examples, row)
	}

	return examples
}

// readReferenceTable parses the dataset CSV into records with the two
// required columns filled in. Returns nil on any structural problem.
func readReferenceTable(csvPath string) []ExampleRecord {
	datasetFile, openError := os.Open(csvPath)

	if openError != nil {
		log.Printf("AssembleContext:readReferenceTable#dataset %s not readable: %s", csvPath, openError.Error())
		return nil
	}
	defer datasetFile.Close()

	reader := csv.NewReader(datasetFile)
	reader.TrimLeadingSpace = true

	allRows, readError := reader.ReadAll()

	if readError != nil {
		log.Printf("AssembleContext:readReferenceTable#Error parsing %s: %s", csvPath, readError.Error())
		return nil
	}
	if len(allRows) < 2 {
		log.Printf("AssembleContext:readReferenceTable#dataset %s has no data rows", csvPath)
		return nil
	}

	filenameIndex, performanceIndex := -1, -1
	for columnIndex, columnName := range allRows[0] {
		switch columnName {
		case filenameColumn:
			filenameIndex = columnIndex
		case performanceColumn:
			performanceIndex = columnIndex
		}
	}
	if filenameIndex < 0 || performanceIndex < 0 {
		log.Printf("AssembleContext:readReferenceTable#dataset %s is missing required columns %s/%s", csvPath, filenameColumn, performanceColumn)
		return nil
	}

	var rows []ExampleRecord
	for _, row := range allRows[1:] {
		if len(row) <= filenameIndex || len(row) <= performanceIndex {
			continue
		}
		rows = append(rows, ExampleRecord{
			Filename:        row[filenameIndex],
			PerformanceInfo: row[performanceIndex],
		})
	}
	return rows
}

// sniffImageMimeType decodes just the image header and maps the detected
// format to its mime type. Returns "" if the bytes are not a known image.
func sniffImageMimeType(imageBytes []byte) string {
	_, format, decodeError := image.DecodeConfig(bytes.NewReader(imageBytes))
	if decodeError != nil {
		return ""
	}
	return "image/" + format
}
