package images

import (
	"context"
	"strings"
)

// Uploaded is one reference that resolved and uploaded successfully.
type Uploaded struct {
	Ref   string
	Local string
	URL   string
}

// Failure is one reference whose resolved file could not be uploaded.
type Failure struct {
	Ref   string
	Local string
	Err   error
}

// Outcome summarizes image handling for one document.
type Outcome struct {
	Uploaded []Uploaded
	Missing  []string
	Failed   []Failure
}

// Pairs returns the rewrite pairs for every successful upload.
func (o Outcome) Pairs() []Pair {
	pairs := make([]Pair, len(o.Uploaded))
	for i, u := range o.Uploaded {
		pairs[i] = Pair{Ref: u.Ref, URL: u.URL}
	}
	return pairs
}

// ResolveAndUpload handles the distinct, non-empty local references of one
// document in order. Remote references are skipped. Missing files and failed
// uploads are recorded and never abort the document.
func ResolveAndUpload(ctx context.Context, refs []string, r *Resolver, up Uploader) Outcome {
	var out Outcome
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] || IsRemote(ref) {
			continue
		}
		seen[ref] = true
		local, _, ok := r.Resolve(ref)
		if !ok {
			out.Missing = append(out.Missing, ref)
			continue
		}
		url, err := up.Upload(ctx, local)
		if err != nil {
			out.Failed = append(out.Failed, Failure{Ref: ref, Local: local, Err: err})
			continue
		}
		out.Uploaded = append(out.Uploaded, Uploaded{Ref: ref, Local: local, URL: url})
	}
	return out
}
