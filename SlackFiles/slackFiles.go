package SlackFiles

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"slack-image-reviewer/Models"
)

type SubjectImage = Models.SubjectImage

// FetchSubjectImage looks up a file's metadata and downloads its bytes.
// Errors out if the file is not an image; the router turns that into a
// user-visible reply.
func FetchSubjectImage(slackApi Models.SlackGateway, fileId string) (SubjectImage, error) {

	var subject SubjectImage

	file, _, _, getFileInfoError := slackApi.GetFileInfo(fileId, 0, 0)

	if getFileInfoError != nil {
		return subject, fmt.Errorf("fetching file info for %s: %w", fileId, getFileInfoError)
	}

	mimeType := strings.ToLower(file.Mimetype)
	if !strings.HasPrefix(mimeType, "image/") {
		return subject, fmt.Errorf("file %s is not an image (mimetype %q)", fileId, file.Mimetype)
	}

	if file.URLPrivateDownload == "" {
		return subject, fmt.Errorf("file %s has no private download url", fileId)
	}

	// GetFile sends the bearer token for us on the private download url
	var downloadBuffer bytes.Buffer
	downloadError := slackApi.GetFile(file.URLPrivateDownload, &downloadBuffer)

	if downloadError != nil {
		return subject, fmt.Errorf("downloading file %s: %w", fileId, downloadError)
	}

	log.Printf("SlackFiles:FetchSubjectImage#downloaded %s (%s, %d bytes)", file.Name, mimeType, downloadBuffer.Len())

	subject.FileID = fileId
	subject.Name = file.Name
	subject.MimeType = mimeType
	subject.Bytes = downloadBuffer.Bytes()
	return subject, nil
}
