package resolver

import (
	"context"
	"errors"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/store"
)

// AnnotationGraph adds annotation reads to Graph.
type AnnotationGraph interface {
	Graph
	GetContextAnnotations(ctx context.Context, id history.VisitID) (history.ContextAnnotations, bool, error)
	GetContentAnnotations(ctx context.Context, id history.VisitID) (history.ContentAnnotations, bool, error)
}

// Annotate builds the annotated projection of v. Missing annotations leave
// their fields zero. The bool is false when the URL row of v is gone, which
// makes the visit unfetchable.
func Annotate(ctx context.Context, g AnnotationGraph, v history.VisitRow) (history.AnnotatedVisit, bool, error) {
	row, err := g.GetURL(ctx, v.URLID)
	if errors.Is(err, store.ErrNotFound) {
		return history.AnnotatedVisit{}, false, nil
	}
	if err != nil {
		return history.AnnotatedVisit{}, false, err
	}

	av := history.AnnotatedVisit{URL: row, Visit: v}
	if av.Context, _, err = g.GetContextAnnotations(ctx, v.ID); err != nil {
		return history.AnnotatedVisit{}, false, err
	}
	if av.Content, _, err = g.GetContentAnnotations(ctx, v.ID); err != nil {
		return history.AnnotatedVisit{}, false, err
	}
	av.ReferringVisitOfChainStart, av.OpenerVisitOfChainStart, err = RedirectAndOpenerForAnnotation(ctx, g, v)
	if err != nil {
		return history.AnnotatedVisit{}, false, err
	}
	return av, true, nil
}

// AnnotateByID loads the visit with the given id and annotates it. The bool
// is false when the visit or its URL no longer exists.
func AnnotateByID(ctx context.Context, g AnnotationGraph, id history.VisitID) (history.AnnotatedVisit, bool, error) {
	v, err := g.GetVisit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return history.AnnotatedVisit{}, false, nil
	}
	if err != nil {
		return history.AnnotatedVisit{}, false, err
	}
	return Annotate(ctx, g, v)
}
