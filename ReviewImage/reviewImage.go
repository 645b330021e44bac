package ReviewImage

import (
	"context"
	"fmt"
	"log"
	"strings"

	"slack-image-reviewer/Models"

	"google.golang.org/genai"
)

type SubjectImage = Models.SubjectImage
type ExampleRecord = Models.ExampleRecord

// VisionModel is the one genai call the pipeline makes. The genai client's
// Models service satisfies it; tests substitute a fake.
type VisionModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

const fullInstruction = `You are an image performance reviewer. Review the first image below.
After it you will find %d example images from our reference set, each preceded by its known performance data.
Ground your review in how the subject compares to those examples.

Respond with exactly:
1. A numeric score from 0 to 100.
2. 1-2 strengths.
3. 1-2 weaknesses.
4. 2-3 concrete suggestions for improvement.
5. A short summary of how the reference data informed the score.`

const reducedInstruction = `You are an image performance reviewer. Review the image below.
No comparative reference data was available for this review, so score it on its own merits.

Respond with exactly:
1. A numeric score from 0 to 100.
2. 1-2 strengths.
3. 1-2 weaknesses.
4. 2-3 concrete suggestions for improvement.
5. A note that no reference data was used.`

// buildReviewParts assembles the ordered multimodal request: instruction
// block, subject image, then each example's annotation and image in
// sampled order.
func buildReviewParts(subject SubjectImage, examples []ExampleRecord) []*genai.Part {
	instruction := reducedInstruction
	if len(examples) > 0 {
		instruction = fmt.Sprintf(fullInstruction, len(examples))
	}

	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromBytes(subject.Bytes, subject.MimeType),
	}

	for exampleIndex, example := range examples {
		annotation := fmt.Sprintf("Example %d (%s) performance data: %s", exampleIndex+1, example.Filename, example.PerformanceInfo)
		parts = append(parts, genai.NewPartFromText(annotation))
		parts = append(parts, genai.NewPartFromBytes(example.ImageBytes, example.MimeType))
	}

	return parts
}

// ReviewSubjectImage runs exactly one vision call for the upload and
// returns the reply text to post. A model failure never propagates: it is
// converted to a short apology so dispatch always completes cleanly.
func ReviewSubjectImage(
	ctx context.Context,
	visionModel VisionModel,
	modelName string,
	subject SubjectImage,
	examples []ExampleRecord,
	userId string) string {

	parts := buildReviewParts(subject, examples)
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	generateContentResult, generateContentError := visionModel.GenerateContent(ctx, modelName, contents, nil)

	if generateContentError != nil {
		log.Printf("ReviewImage:ReviewSubjectImage#Error from vision model for file %s: %s", subject.FileID, generateContentError.Error())
		return fmt.Sprintf("Sorry <@%s>, I couldn't get a review for *%s* from the model. Please try again later.", userId, subject.Name)
	}

	review := collectResponseText(generateContentResult)
	if review == "" {
		log.Printf("ReviewImage:ReviewSubjectImage#empty response from vision model for file %s", subject.FileID)
		return fmt.Sprintf("Sorry <@%s>, the model returned an empty review for *%s*.", userId, subject.Name)
	}

	// the review itself is relayed verbatim
	return fmt.Sprintf("<@%s>, here's the review of *%s*:\n%s", userId, subject.Name, review)
}

func collectResponseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var reviewText strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		reviewText.WriteString(part.Text)
	}
	return strings.TrimSpace(reviewText.String())
}
