package controllers

import (
	"review-hub-backend/bleve/repositories"
	reviewRepositories "review-hub-backend/reviews/repositories"
)

type SearchController struct {
	repo    repositories.BleveRepositoryInterface
	reviews reviewRepositories.ReviewRepository
}

func NewSearchController(repo repositories.BleveRepositoryInterface, reviews reviewRepositories.ReviewRepository) *SearchController {
	return &SearchController{repo: repo, reviews: reviews}
}
