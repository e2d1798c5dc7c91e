package application

import (
	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/pagination"
	"marketplace/internal/service/review/domain"
)

// ProductReviewRequest 商品评价请求。ProductID 为空且订单只剩一件待评价商品时自动选中它。
type ProductReviewRequest struct {
	OrderCode string
	BuyerID   string
	ProductID string
	Rating    int
	Comment   string
	Buyer     domain.BuyerInfo
}

type StoreReviewRequest struct {
	BuyerID  string
	SellerID string
	Rating   int
	Comment  string
	Buyer    domain.BuyerInfo
}

// ListReviewsRequest 分页与排序参数，Sort 为空时按最新排序
type ListReviewsRequest struct {
	Page  int
	Limit int
	Sort  string
}

func (r ListReviewsRequest) toQuery() (domain.ReviewQuery, error) {
	q := domain.ReviewQuery{Page: pagination.New(r.Page, r.Limit), Sort: domain.SortNewest}
	switch domain.ReviewSort(r.Sort) {
	case "":
	case domain.SortNewest, domain.SortOldest, domain.SortHighest, domain.SortLowest:
		q.Sort = domain.ReviewSort(r.Sort)
	default:
		return q, errs.Validation("unknown sort %q", r.Sort)
	}
	return q, nil
}

// RebuildReport 一次全量重建的结果
type RebuildReport struct {
	Products int
	Sellers  int
	Failed   int
}
