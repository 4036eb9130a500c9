package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-observer/internal/cli"
	"github.com/Veraticus/the-observer/internal/model"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage children's learning goals",
		Long: `Goals are what every new observation is scored against. Only active goals
are scored; achieved goals keep their history for monthly reports.`,
	}

	cmd.AddCommand(goalsAddCmd())
	cmd.AddCommand(goalsListCmd())
	cmd.AddCommand(goalsAchieveCmd())

	return cmd
}

func goalsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a goal for a child",
		RunE:  runGoalsAdd,
	}

	cmd.Flags().String("child", "", "child id")
	cmd.Flags().String("observer", "", "observer id")
	cmd.Flags().String("text", "", "goal text")
	cmd.Flags().String("target", "", "target date (YYYY-MM-DD)")
	for _, name := range []string{"child", "observer", "text"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runGoalsAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	childID, _ := flags.GetString("child")
	observerID, _ := flags.GetString("observer")
	text, _ := flags.GetString("text")
	target, _ := flags.GetString("target")

	goal := &model.Goal{
		ChildID:    childID,
		ObserverID: observerID,
		GoalText:   text,
		Status:     model.GoalActive,
	}
	if target != "" {
		t, err := time.Parse(model.DayLayout, target)
		if err != nil {
			return fmt.Errorf("invalid target date %q (use YYYY-MM-DD): %w", target, err)
		}
		goal.TargetDate = &t
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	if err := store.CreateGoal(ctx, goal); err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Added goal "+goal.ID))
	return nil
}

func goalsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a child's goals",
		RunE:  runGoalsList,
	}

	cmd.Flags().String("child", "", "child id")
	cmd.Flags().Bool("active", false, "only show active goals")
	_ = cmd.MarkFlagRequired("child")

	return cmd
}

func runGoalsList(cmd *cobra.Command, _ []string) error {
	childID, _ := cmd.Flags().GetString("child")
	activeOnly, _ := cmd.Flags().GetBool("active")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	var goals []model.Goal
	if activeOnly {
		goals, err = store.ListActiveGoalsByChild(ctx, childID)
	} else {
		goals, err = store.ListGoalsByChild(ctx, childID)
	}
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatGoals(goals))
	return nil
}

func goalsAchieveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achieve GOAL_ID",
		Short: "Mark a goal as achieved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.UpdateGoalStatus(ctx, args[0], model.GoalAchieved); err != nil {
				return fmt.Errorf("failed to update goal: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Goal "+args[0]+" achieved"))
			return nil
		},
	}
}
