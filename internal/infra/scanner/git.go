package scanner

import (
	"context"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/vibescan/api/pkg/domain/shared"
)

// CloneRepo does a shallow clone of a public git repository into dest
// as an alternative to an uploaded archive.
func CloneRepo(ctx context.Context, url, dest string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: git url is required", shared.ErrInvalidInput)
	}
	if !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%w: only https git urls are supported", shared.ErrInvalidInput)
	}

	_, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         gogit.NoTags,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to clone repository: %v", shared.ErrInvalidInput, err)
	}

	return nil
}
